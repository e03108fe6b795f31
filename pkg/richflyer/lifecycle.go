package richflyer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Identity acquires the identity material of the environment's active
// channel: the current subscription for the standard channel, the remote
// permission for the vendor channel.
func (c *Client) Identity(ctx context.Context, env Environment) (Identity, error) {
	switch DetectChannel(env) {
	case ChannelStandard:
		sub, err := env.Push.Subscription(ctx)
		if err != nil {
			return nil, fmt.Errorf("richflyer.Identity: get subscription: %w", err)
		}
		if sub == nil {
			c.logger.Warn("standard push channel has no subscription")
			return nil, ErrNoIdentity
		}
		return StandardIdentity{Subscription: *sub}, nil
	case ChannelVendor:
		perm, err := env.Vendor.RemotePermission(ctx, c.websitePushID)
		if err != nil {
			return nil, fmt.Errorf("richflyer.Identity: get remote permission: %w", err)
		}
		return VendorIdentity{Permission: perm}, nil
	default:
		c.logger.Warn("no push channel available")
		return nil, ErrNoChannel
	}
}

// Init registers the environment for push notifications and returns the
// resulting permission. For the standard channel a granted permission
// leads to a new subscription that is activated on the server. Without any
// push channel Init logs and returns an empty permission.
func (c *Client) Init(ctx context.Context, env Environment) (Permission, error) {
	switch DetectChannel(env) {
	case ChannelStandard:
		return c.initStandard(ctx, env.Push)
	case ChannelVendor:
		return c.initVendor(ctx, env.Vendor)
	default:
		c.logger.Warn("push notifications are not supported in this environment")
		return "", nil
	}
}

func (c *Client) initStandard(ctx context.Context, pm PushManager) (Permission, error) {
	perm, err := pm.PermissionState(ctx)
	if err != nil {
		return "", fmt.Errorf("richflyer.Init: permission state: %w", err)
	}
	if perm == PermissionDefault {
		if perm, err = pm.RequestPermission(ctx); err != nil {
			return "", fmt.Errorf("richflyer.Init: request permission: %w", err)
		}
	}
	if perm != PermissionGranted {
		return perm, nil
	}

	key, err := c.ServerPublicKey(ctx)
	if err != nil {
		return "", fmt.Errorf("richflyer.Init: %w", err)
	}
	serverKey, err := decodeServerKey(key)
	if err != nil {
		return "", fmt.Errorf("richflyer.Init: decode server key: %w", err)
	}

	sub, err := pm.Subscribe(ctx, serverKey)
	if err != nil {
		return "", fmt.Errorf("richflyer.Init: subscribe: %w", err)
	}
	if err := c.ActivateDevice(ctx, sub); err != nil {
		return "", fmt.Errorf("richflyer.Init: activate device failed: %w", err)
	}
	c.logger.Info("push subscription activated", "endpoint", sub.Endpoint)
	return PermissionGranted, nil
}

func (c *Client) initVendor(ctx context.Context, vp VendorPush) (Permission, error) {
	perm, err := vp.RemotePermission(ctx, c.websitePushID)
	if err != nil {
		return "", fmt.Errorf("richflyer.Init: remote permission: %w", err)
	}
	if perm.Permission == PermissionDefault {
		if perm, err = vp.RequestPermission(ctx, c.websitePushID); err != nil {
			return "", fmt.Errorf("richflyer.Init: request remote permission: %w", err)
		}
	}
	return perm.Permission, nil
}

// Unsubscribe removes the standard-channel subscription and drops the cached
// token. It reports false when there was no subscription to remove. The
// vendor channel has nothing to unsubscribe and reports true.
func (c *Client) Unsubscribe(ctx context.Context, env Environment) (bool, error) {
	switch DetectChannel(env) {
	case ChannelStandard:
		sub, err := env.Push.Subscription(ctx)
		if err != nil {
			return false, fmt.Errorf("richflyer.Unsubscribe: get subscription: %w", err)
		}
		if sub == nil {
			return false, nil
		}
		if err := env.Push.Unsubscribe(ctx); err != nil {
			return false, fmt.Errorf("richflyer.Unsubscribe: %w", err)
		}
		if err := c.tokens.ClearToken(ctx); err != nil {
			return false, fmt.Errorf("richflyer.Unsubscribe: clear token: %w", err)
		}
		return true, nil
	case ChannelVendor:
		return true, nil
	default:
		c.logger.Warn("push notifications are not supported in this environment")
		return false, nil
	}
}

// decodeServerKey accepts the key in either base64 alphabet, padded or not.
func decodeServerKey(key string) ([]byte, error) {
	key = strings.NewReplacer("+", "-", "/", "_").Replace(strings.TrimRight(key, "="))
	return base64.RawURLEncoding.DecodeString(key)
}
