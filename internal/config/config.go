// Package config loads the richflyer CLI configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukerupert/richflyer/internal/autopush"
	"github.com/dukerupert/richflyer/pkg/richflyer"
)

var ErrMissingServiceKey = errors.New("RICHFLYER_SERVICE_KEY is required")

type Config struct {
	ServiceKey    string
	Domain        string
	WebsitePushID string
	APIURL        string
	DBPath        string
	LogLevel      string
	LogFormat     string
	Retries       int

	// AutopushURL is empty when the standard channel is disabled.
	AutopushURL string
	// SafariDeviceToken enables the vendor channel when set.
	SafariDeviceToken string
	OpenBrowser       bool

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
}

// Load reads the configuration through getenv, normally os.Getenv.
func Load(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		ServiceKey:        get("RICHFLYER_SERVICE_KEY", ""),
		Domain:            get("RICHFLYER_DOMAIN", ""),
		WebsitePushID:     get("RICHFLYER_WEBSITE_PUSH_ID", ""),
		APIURL:            get("RICHFLYER_API_URL", richflyer.DefaultBaseURL),
		DBPath:            get("RICHFLYER_DB_PATH", "richflyer.db"),
		LogLevel:          get("RICHFLYER_LOG_LEVEL", "info"),
		LogFormat:         get("RICHFLYER_LOG_FORMAT", "text"),
		AutopushURL:       get("RICHFLYER_AUTOPUSH_URL", autopush.DefaultURL),
		SafariDeviceToken: get("RICHFLYER_SAFARI_DEVICE_TOKEN", ""),
		VAPIDPublicKey:    get("RICHFLYER_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:   get("RICHFLYER_VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber:   get("RICHFLYER_VAPID_SUBSCRIBER", "mailto:dev@localhost"),
	}

	if cfg.ServiceKey == "" {
		return nil, ErrMissingServiceKey
	}
	if strings.EqualFold(cfg.AutopushURL, "off") {
		cfg.AutopushURL = ""
	}

	retries, err := strconv.Atoi(get("RICHFLYER_RETRIES", strconv.Itoa(richflyer.DefaultRetries)))
	if err != nil || retries <= 0 {
		return nil, fmt.Errorf("RICHFLYER_RETRIES must be a positive integer, got %q", getenv("RICHFLYER_RETRIES"))
	}
	cfg.Retries = retries

	open, err := strconv.ParseBool(get("RICHFLYER_OPEN_BROWSER", "true"))
	if err != nil {
		return nil, fmt.Errorf("RICHFLYER_OPEN_BROWSER: %w", err)
	}
	cfg.OpenBrowser = open

	return cfg, nil
}
