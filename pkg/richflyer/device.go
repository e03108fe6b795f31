package richflyer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type activateDeviceRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
	Domain   string `json:"domain"`
}

// ServerPublicKey fetches the application server key used to subscribe.
func (c *Client) ServerPublicKey(ctx context.Context) (string, error) {
	data, err := c.rawRequest(ctx, http.MethodGet, "/v1/webpush/key", "", nil)
	if err != nil {
		return "", fmt.Errorf("richflyer.ServerPublicKey: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("richflyer.ServerPublicKey: empty key: %w", ErrMalformedResponse)
	}
	return key, nil
}

// ActivateDevice registers a standard-channel subscription with the server.
func (c *Client) ActivateDevice(ctx context.Context, sub PushSubscription) error {
	body := activateDeviceRequest{
		Endpoint: sub.Endpoint,
		P256dh:   sub.P256dhKey(),
		Auth:     DeviceID(sub),
		Domain:   c.domain,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/v1/devices/webpush", "", body, nil); err != nil {
		c.warnRejected("activate device rejected", err)
		return fmt.Errorf("richflyer.ActivateDevice: %w", err)
	}
	return nil
}
