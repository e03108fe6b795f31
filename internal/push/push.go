package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/dukerupert/richflyer/pkg/richflyer"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON body RichFlyer delivers to a subscription.
type Payload struct {
	Title          string         `json:"Title"`
	Icon           string         `json:"Icon,omitempty"`
	Body           string         `json:"Body"`
	NotificationID string         `json:"notification_id"`
	EventID        string         `json:"event_id,omitempty"`
	URL            string         `json:"url,omitempty"`
	ClickAction    string         `json:"click_action,omitempty"`
	ActionButtons  []ActionButton `json:"action_buttons,omitempty"`
}

// ActionButton is one button of a notification; Value is the URL it opens.
type ActionButton struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sender delivers payloads to push subscriptions as an application server.
// The richflyer CLI uses it to send test notifications to its own
// subscription.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string
	httpClient *http.Client
}

// NewSender creates a sender signing with the given VAPID keys.
func NewSender(publicKey, privateKey, subscriber string, httpClient *http.Client) *Sender {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Sender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		httpClient: httpClient,
	}
}

// VAPIDPublicKey returns the key subscriptions must be created with.
func (s *Sender) VAPIDPublicKey() string {
	return s.publicKey
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
func (s *Sender) Send(ctx context.Context, sub richflyer.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey(),
			Auth:   sub.AuthKey(),
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             60,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new VAPID key pair, both base64url encoded.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
