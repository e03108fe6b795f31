package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dukerupert/richflyer/internal/autopush"
	"github.com/dukerupert/richflyer/internal/config"
	"github.com/dukerupert/richflyer/internal/database"
	"github.com/dukerupert/richflyer/internal/logging"
	"github.com/dukerupert/richflyer/internal/store"
	"github.com/dukerupert/richflyer/pkg/richflyer"
)

var errStandardDisabled = errors.New("standard push channel is disabled (RICHFLYER_AUTOPUSH_URL=off)")

// app is the wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	db      *sql.DB
	notes   *store.NotificationStore
	client  *richflyer.Client
	manager *autopush.Manager // dialed on first use
	vendor  richflyer.VendorPush
}

func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	notes := store.NewNotificationStore(db)
	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    out,
		db:     db,
		notes:  notes,
		client: richflyer.New(richflyer.Config{
			BaseURL:       cfg.APIURL,
			ServiceKey:    cfg.ServiceKey,
			Domain:        cfg.Domain,
			WebsitePushID: cfg.WebsitePushID,
			Retries:       cfg.Retries,
			Logger:        logger,
		}, store.NewCredentialStore(db), notes),
	}

	if cfg.SafariDeviceToken != "" {
		a.vendor = envVendor{token: cfg.SafariDeviceToken}
	}
	return a, nil
}

// pushManager connects to the push service the first time it is needed.
func (a *app) pushManager(ctx context.Context) (*autopush.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	if a.cfg.AutopushURL == "" {
		return nil, errStandardDisabled
	}
	m, err := autopush.NewManager(ctx, a.cfg.AutopushURL, store.NewSubscriptionStore(a.db), a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect push service: %w", err)
	}
	a.manager = m
	return m, nil
}

// environment returns the push channels available to device commands.
func (a *app) environment(ctx context.Context) (richflyer.Environment, error) {
	env := richflyer.Environment{Vendor: a.vendor}
	if a.cfg.AutopushURL != "" {
		m, err := a.pushManager(ctx)
		if err != nil {
			return richflyer.Environment{}, err
		}
		env.Push = m
	}
	a.logger.Debug("push environment ready", "channel", richflyer.DetectChannel(env).String())
	return env, nil
}

func (a *app) Close() error {
	if a.manager != nil {
		a.manager.Close() //nolint:errcheck
	}
	return a.db.Close()
}

// envVendor is a vendor push capability whose device token was obtained
// out of band and handed over through the environment.
type envVendor struct {
	token string
}

func (v envVendor) RemotePermission(context.Context, string) (richflyer.RemotePermission, error) {
	return richflyer.RemotePermission{DeviceToken: v.token, Permission: richflyer.PermissionGranted}, nil
}

func (v envVendor) RequestPermission(ctx context.Context, websitePushID string) (richflyer.RemotePermission, error) {
	return v.RemotePermission(ctx, websitePushID)
}
