package richflyer

import (
	"context"
	"fmt"
	"net/http"
)

// callAuthorized runs one device-scoped API call with the cached bearer
// token. A 401 forces exactly one token exchange before the next attempt;
// at most c.retries attempts are made. Any other failure is terminal.
func (c *Client) callAuthorized(ctx context.Context, id Identity, method string, path func(deviceID string) string, body, out any) error {
	if id == nil {
		return ErrNoIdentity
	}

	for retriesLeft := c.retries; ; retriesLeft-- {
		if retriesLeft <= 0 {
			return ErrRetriesExhausted
		}

		token, err := c.AuthToken(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoAuthToken, err)
		}
		deviceID, err := c.ResolveDeviceID(ctx, id)
		if err != nil {
			return err
		}

		err = c.doRequest(ctx, method, path(deviceID), token, body, out)
		if err == nil {
			return nil
		}
		if !IsStatus(err, http.StatusUnauthorized) {
			c.warnRejected("device request rejected", err)
			return err
		}

		c.logger.Info("auth token rejected, reauthenticating", "method", method, "retries_left", retriesLeft-1)
		if _, err := c.createAuthToken(ctx, id); err != nil {
			return fmt.Errorf("reauthenticate: %w", err)
		}
	}
}
