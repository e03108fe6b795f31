package richflyer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// DeviceID derives the standard-channel device id from the subscription's
// auth secret. It is local and deterministic.
func DeviceID(sub PushSubscription) string {
	return sub.AuthKey()
}

// ResolveDeviceID returns the server-facing device id for an identity. The
// standard channel derives it locally; the vendor channel asks the server
// to map the device token.
func (c *Client) ResolveDeviceID(ctx context.Context, id Identity) (string, error) {
	switch id := id.(type) {
	case StandardIdentity:
		return DeviceID(id.Subscription), nil
	case VendorIdentity:
		return c.vendorDeviceID(ctx, id.Permission)
	default:
		return "", ErrNoIdentity
	}
}

func (c *Client) vendorDeviceID(ctx context.Context, perm RemotePermission) (string, error) {
	if perm.DeviceToken == "" {
		return "", fmt.Errorf("richflyer.ResolveDeviceID: empty device token: %w", ErrNoIdentity)
	}

	var resp struct {
		DeviceID string `json:"device_id"`
	}
	path := "/v1/safari/devices/" + url.PathEscape(perm.DeviceToken) + "/deviceID/"
	if err := c.doRequest(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return "", fmt.Errorf("richflyer.ResolveDeviceID: %w", err)
	}
	if resp.DeviceID == "" {
		return "", fmt.Errorf("richflyer.ResolveDeviceID: missing device_id: %w", ErrMalformedResponse)
	}
	return resp.DeviceID, nil
}
