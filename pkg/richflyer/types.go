package richflyer

import (
	"context"
	"encoding/base64"
)

// Channel is the push mechanism a browser environment offers.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelStandard
	ChannelVendor
)

func (c Channel) String() string {
	switch c {
	case ChannelStandard:
		return "standard"
	case ChannelVendor:
		return "vendor"
	default:
		return "none"
	}
}

// Permission is a notification permission state as reported by the browser.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PushSubscription is the standard-channel subscription owned by the push
// manager. The SDK only reads it.
type PushSubscription struct {
	Endpoint string
	Auth     []byte
	P256dh   []byte
}

// AuthKey returns the auth secret as padded base64url, the form the API expects.
func (s PushSubscription) AuthKey() string {
	return base64.URLEncoding.EncodeToString(s.Auth)
}

// P256dhKey returns the user agent public key as padded base64url.
func (s PushSubscription) P256dhKey() string {
	return base64.URLEncoding.EncodeToString(s.P256dh)
}

// RemotePermission is the vendor-channel permission object.
type RemotePermission struct {
	DeviceToken string
	Permission  Permission
}

// Identity is the identity material of exactly one push channel. It is
// either a StandardIdentity or a VendorIdentity.
type Identity interface {
	Channel() Channel
	isIdentity()
}

// StandardIdentity carries a standard push subscription.
type StandardIdentity struct {
	Subscription PushSubscription
}

func (StandardIdentity) Channel() Channel { return ChannelStandard }
func (StandardIdentity) isIdentity()      {}

// VendorIdentity carries a vendor remote-permission object.
type VendorIdentity struct {
	Permission RemotePermission
}

func (VendorIdentity) Channel() Channel { return ChannelVendor }
func (VendorIdentity) isIdentity()      {}

// PushManager is the standard push capability of the environment.
type PushManager interface {
	PermissionState(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	// Subscribe creates a subscription for the given application server key.
	Subscribe(ctx context.Context, applicationServerKey []byte) (PushSubscription, error)
	// Subscription returns the active subscription, or nil if there is none.
	Subscription(ctx context.Context) (*PushSubscription, error)
	Unsubscribe(ctx context.Context) error
}

// VendorPush is the vendor push capability, keyed by website push id.
type VendorPush interface {
	RemotePermission(ctx context.Context, websitePushID string) (RemotePermission, error)
	RequestPermission(ctx context.Context, websitePushID string) (RemotePermission, error)
}

// Environment describes which push capabilities are present. A nil field
// means the capability is absent.
type Environment struct {
	Push   PushManager
	Vendor VendorPush
}

// DetectChannel picks the active channel. Standard wins when both exist.
func DetectChannel(env Environment) Channel {
	switch {
	case env.Push != nil:
		return ChannelStandard
	case env.Vendor != nil:
		return ChannelVendor
	default:
		return ChannelNone
	}
}

// TokenStore holds at most one cached bearer token. A missing token is a
// valid state and is reported with ok == false.
type TokenStore interface {
	LoadToken(ctx context.Context) (token string, ok bool, err error)
	SaveToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// NotificationRecord is the most recently received push notification.
type NotificationRecord struct {
	NotificationID   string
	Title            string
	Body             string
	ExtendedProperty string
	EventLogSent     bool
	Clicked          bool
	ReceivedDate     int64 // unix seconds
}

// NotificationStore holds at most one NotificationRecord. Put overwrites.
type NotificationStore interface {
	// Get returns nil, nil when no record exists.
	Get(ctx context.Context) (*NotificationRecord, error)
	Put(ctx context.Context, rec NotificationRecord) error
}
