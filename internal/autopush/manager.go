package autopush

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dukerupert/richflyer/internal/ece"
	"github.com/dukerupert/richflyer/internal/model"
	"github.com/dukerupert/richflyer/pkg/richflyer"
)

// StateStore persists the push registration between runs.
type StateStore interface {
	Load(ctx context.Context) (*model.PushState, error)
	Save(ctx context.Context, st model.PushState) error
	ClearSubscription(ctx context.Context) error
}

// Manager is a headless richflyer.PushManager backed by an autopush
// connection. Permission is always granted; there is no user to ask.
type Manager struct {
	client *Client
	states StateStore
	logger *slog.Logger

	mu    sync.Mutex
	state model.PushState
	keys  *ece.Keys

	messages chan []byte
}

var _ richflyer.PushManager = (*Manager)(nil)

// NewManager connects to the push service, resumes the stored user agent
// id and starts decrypting incoming messages.
func NewManager(ctx context.Context, url string, states StateStore, logger *slog.Logger) (*Manager, error) {
	stored, err := states.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load push state: %w", err)
	}

	client, err := Dial(ctx, url, logger)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		client:   client,
		states:   states,
		logger:   logger,
		messages: make(chan []byte, notificationsBuf),
	}
	if stored != nil {
		m.state = *stored
	}

	if err := m.handshake(ctx); err != nil {
		client.Close()
		return nil, err
	}

	go m.forward()
	return m, nil
}

func (m *Manager) handshake(ctx context.Context) error {
	var channelIDs []string
	if m.state.Subscribed() {
		keys, err := ece.LoadKeys(m.state.AuthSecret, m.state.PrivateKey)
		if err != nil {
			m.logger.Warn("stored push keys are unusable, dropping subscription", "error", err)
			m.state = model.PushState{UAID: m.state.UAID}
		} else {
			m.keys = keys
			channelIDs = []string{m.state.ChannelID}
		}
	}

	resp, err := m.client.Hello(ctx, m.state.UAID, channelIDs)
	if err != nil {
		return err
	}

	if resp.UAID != m.state.UAID {
		// A new user agent id means the service forgot every registration.
		if m.state.Subscribed() {
			m.logger.Info("push service issued a new uaid, previous subscription is gone", "channel_id", m.state.ChannelID)
		}
		m.state = model.PushState{UAID: resp.UAID}
		m.keys = nil
		if err := m.states.Save(ctx, m.state); err != nil {
			return fmt.Errorf("save push state: %w", err)
		}
	}
	return nil
}

func (m *Manager) PermissionState(context.Context) (richflyer.Permission, error) {
	return richflyer.PermissionGranted, nil
}

func (m *Manager) RequestPermission(context.Context) (richflyer.Permission, error) {
	return richflyer.PermissionGranted, nil
}

// Subscribe registers a new channel for applicationServerKey. An existing
// subscription is returned unchanged.
func (m *Manager) Subscribe(ctx context.Context, applicationServerKey []byte) (richflyer.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Subscribed() && m.keys != nil {
		return m.subscriptionLocked(), nil
	}

	keys, err := ece.GenerateKeys()
	if err != nil {
		return richflyer.PushSubscription{}, err
	}
	channelID := uuid.NewString()
	resp, err := m.client.Register(ctx, channelID, base64.RawURLEncoding.EncodeToString(applicationServerKey))
	if err != nil {
		return richflyer.PushSubscription{}, fmt.Errorf("register channel: %w", err)
	}

	st := model.PushState{
		UAID:       m.state.UAID,
		ChannelID:  channelID,
		Endpoint:   resp.PushEndpoint,
		AuthSecret: keys.Auth,
		PrivateKey: keys.PrivateBytes(),
	}
	if err := m.states.Save(ctx, st); err != nil {
		return richflyer.PushSubscription{}, fmt.Errorf("save push state: %w", err)
	}
	m.state, m.keys = st, keys

	m.logger.Info("registered push channel", "channel_id", channelID)
	return m.subscriptionLocked(), nil
}

// Subscription returns the active subscription, or nil if there is none.
func (m *Manager) Subscription(context.Context) (*richflyer.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Subscribed() || m.keys == nil {
		return nil, nil
	}
	sub := m.subscriptionLocked()
	return &sub, nil
}

func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Subscribed() {
		return nil
	}
	if err := m.client.Unregister(ctx, m.state.ChannelID); err != nil {
		return fmt.Errorf("unregister channel: %w", err)
	}
	if err := m.states.ClearSubscription(ctx); err != nil {
		return err
	}
	m.state = model.PushState{UAID: m.state.UAID}
	m.keys = nil
	return nil
}

// Messages yields decrypted push payloads. It is closed when the
// connection ends.
func (m *Manager) Messages() <-chan []byte {
	return m.messages
}

// Done is closed when the push service connection ends.
func (m *Manager) Done() <-chan struct{} {
	return m.client.Done()
}

func (m *Manager) Close() error {
	return m.client.Close()
}

func (m *Manager) subscriptionLocked() richflyer.PushSubscription {
	return richflyer.PushSubscription{
		Endpoint: m.state.Endpoint,
		Auth:     m.keys.Auth,
		P256dh:   m.keys.P256dh(),
	}
}

func (m *Manager) forward() {
	defer close(m.messages)

	for n := range m.client.Notifications() {
		payload, err := m.decrypt(n)
		if err != nil {
			m.logger.Warn("dropping push message", "channel_id", n.ChannelID, "version", n.Version, "error", err)
			continue
		}
		select {
		case m.messages <- payload:
		case <-m.client.Done():
			return
		}
	}
}

var errUnknownChannel = errors.New("message for unknown channel")

func (m *Manager) decrypt(n Notification) ([]byte, error) {
	m.mu.Lock()
	keys, channelID := m.keys, m.state.ChannelID
	m.mu.Unlock()

	if keys == nil || n.ChannelID != channelID {
		return nil, errUnknownChannel
	}
	if n.Data == "" {
		return nil, errors.New("message has no payload")
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(n.Data, "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return keys.Decrypt(data)
}
