package richflyer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// AuthToken returns the cached bearer token when one is stored. Otherwise it
// exchanges the device identity for a new token and caches it. Presence is
// the only freshness check; expiry is discovered through 401 responses.
func (c *Client) AuthToken(ctx context.Context, id Identity) (string, error) {
	if id == nil {
		c.logger.Warn("auth token requested without subscription or remote permission")
		return "", ErrNoIdentity
	}

	token, ok, err := c.tokens.LoadToken(ctx)
	if err != nil {
		return "", fmt.Errorf("richflyer.AuthToken: load token: %w", err)
	}
	if ok {
		return token, nil
	}

	token, err = c.createAuthToken(ctx, id)
	if err != nil {
		return "", fmt.Errorf("richflyer.AuthToken: %w", err)
	}
	return token, nil
}

// createAuthToken drops the cached token and exchanges the device identity
// for a new one. A standard-channel device the server does not know is
// re-activated and the exchange is tried once more.
func (c *Client) createAuthToken(ctx context.Context, id Identity) (string, error) {
	if id == nil {
		c.logger.Warn("token exchange requested without subscription or remote permission")
		return "", ErrNoIdentity
	}
	if err := c.tokens.ClearToken(ctx); err != nil {
		return "", fmt.Errorf("clear token: %w", err)
	}

	token, err := c.exchangeToken(ctx, id)
	if errors.Is(err, ErrDeviceNotFound) {
		if std, ok := id.(StandardIdentity); ok {
			c.logger.Info("device not registered, reactivating")
			if actErr := c.ActivateDevice(ctx, std.Subscription); actErr != nil {
				return "", fmt.Errorf("reactivate device: %w", actErr)
			}
			token, err = c.exchangeToken(ctx, id)
		}
	}
	if err != nil {
		c.warnRejected("token exchange failed", err)
		return "", err
	}

	if err := c.tokens.SaveToken(ctx, token); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	return token, nil
}

func (c *Client) exchangeToken(ctx context.Context, id Identity) (string, error) {
	deviceID, err := c.ResolveDeviceID(ctx, id)
	if err != nil {
		return "", err
	}

	var resp struct {
		IDToken string `json:"id_token"`
	}
	path := "/v1/devices/" + url.PathEscape(deviceID) + "/authentication-tokens"
	if err := c.doRequest(ctx, http.MethodPost, path, "", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("exchange token: %w", err)
	}
	if resp.IDToken == "" {
		return "", fmt.Errorf("exchange token: missing id_token: %w", ErrMalformedResponse)
	}
	return resp.IDToken, nil
}
