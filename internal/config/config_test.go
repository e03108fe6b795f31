package config

import (
	"errors"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(env(map[string]string{"RICHFLYER_SERVICE_KEY": "svc"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIURL != "https://api.richflyer.net" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.DBPath != "richflyer.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Retries != 3 {
		t.Errorf("Retries = %d, want 3", cfg.Retries)
	}
	if cfg.AutopushURL != "wss://push.services.mozilla.com" {
		t.Errorf("AutopushURL = %q", cfg.AutopushURL)
	}
	if !cfg.OpenBrowser {
		t.Error("OpenBrowser should default to true")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"RICHFLYER_SERVICE_KEY":         "svc",
		"RICHFLYER_DOMAIN":              "example.com",
		"RICHFLYER_API_URL":             "http://localhost:9000",
		"RICHFLYER_RETRIES":             "5",
		"RICHFLYER_AUTOPUSH_URL":        "off",
		"RICHFLYER_SAFARI_DEVICE_TOKEN": "tok",
		"RICHFLYER_OPEN_BROWSER":        "false",
		"RICHFLYER_LOG_FORMAT":          "json",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != "example.com" || cfg.APIURL != "http://localhost:9000" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Retries != 5 {
		t.Errorf("Retries = %d, want 5", cfg.Retries)
	}
	if cfg.AutopushURL != "" {
		t.Errorf("AutopushURL = %q, want disabled", cfg.AutopushURL)
	}
	if cfg.SafariDeviceToken != "tok" || cfg.OpenBrowser || cfg.LogFormat != "json" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(env(nil)); !errors.Is(err, ErrMissingServiceKey) {
		t.Errorf("error = %v, want ErrMissingServiceKey", err)
	}
	for _, bad := range []map[string]string{
		{"RICHFLYER_SERVICE_KEY": "svc", "RICHFLYER_RETRIES": "zero"},
		{"RICHFLYER_SERVICE_KEY": "svc", "RICHFLYER_RETRIES": "-1"},
		{"RICHFLYER_SERVICE_KEY": "svc", "RICHFLYER_OPEN_BROWSER": "maybe"},
	} {
		if _, err := Load(env(bad)); err == nil {
			t.Errorf("Load(%v) succeeded, want error", bad)
		}
	}
}
