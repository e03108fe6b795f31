// Package richflyer is a client for the RichFlyer web push API. It turns a
// browser push subscription into a device identity, keeps a short-lived
// bearer token for that device, and performs authenticated device
// operations with bounded re-authentication on 401 responses.
package richflyer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.richflyer.net"
	DefaultRetries = 3

	apiVersion = "2017-04-01"

	maxErrorBody = 1 << 20
)

// Config holds SDK configuration.
type Config struct {
	BaseURL       string
	ServiceKey    string
	Domain        string // site domain sent on device activation
	WebsitePushID string // vendor channel website push id
	Retries       int    // bound for 401 re-authentication; defaults to 3

	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client is the RichFlyer SDK client. It holds no per-device state of its
// own; the cached token lives in the TokenStore and the last received
// notification in the NotificationStore.
type Client struct {
	baseURL       string
	serviceKey    string
	domain        string
	websitePushID string
	retries       int

	httpClient    *http.Client
	tokens        TokenStore
	notifications NotificationStore
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a new SDK client.
func New(cfg Config, tokens TokenStore, notifications NotificationStore) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		serviceKey:    cfg.ServiceKey,
		domain:        cfg.Domain,
		websitePushID: cfg.WebsitePushID,
		retries:       cfg.Retries,
		httpClient:    cfg.HTTPClient,
		tokens:        tokens,
		notifications: notifications,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
}

// doRequest performs one API call. A non-empty token is sent as a Bearer
// credential. Any status other than 200 is returned as *APIError.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body any, out any) error {
	data, err := c.rawRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w: %w", ErrMalformedResponse, err)
		}
	}
	return nil
}

func (c *Client) rawRequest(ctx context.Context, method, path, token string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Version", apiVersion)
	req.Header.Set("X-Service-Key", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && (apiErr.Message != "" || apiErr.Code != 0) {
			return nil, &APIError{StatusCode: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Message}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (c *Client) warnRejected(msg string, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.logger.Warn(msg, "status", apiErr.StatusCode, "code", apiErr.Code, "message", apiErr.Message)
		return
	}
	c.logger.Warn(msg, "error", err)
}
