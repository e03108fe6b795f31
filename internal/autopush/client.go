// Package autopush speaks the Mozilla autopush websocket protocol, the
// transport behind a browser's standard push subscription.
package autopush

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// DefaultURL is Mozilla's public push service.
const DefaultURL = "wss://push.services.mozilla.com"

const (
	defaultTimeout   = 5 * time.Second
	pingInterval     = 30 * time.Second
	notificationsBuf = 16
)

var (
	ErrClosed   = errors.New("autopush: connection closed")
	ErrConflict = errors.New("autopush: channel id already registered")
)

// Client is one autopush connection. Requests are serialized; incoming
// notifications are acknowledged and delivered on Notifications.
type Client struct {
	conn    *ws.Conn
	logger  *slog.Logger
	timeout time.Duration

	reqMu   sync.Mutex
	mu      sync.Mutex
	pending chan json.RawMessage
	want    MessageType

	notifications chan Notification
	cancel        context.CancelFunc
	done          chan struct{}
	err           error
}

// Dial connects to the push service and starts reading from it.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("autopush: dial %s: %w", url, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:          conn,
		logger:        logger,
		timeout:       defaultTimeout,
		notifications: make(chan Notification, notificationsBuf),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go c.readPump(loopCtx)
	go c.keepalive(loopCtx)
	return c, nil
}

// Notifications is closed when the connection ends.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Done is closed when the connection ends; Err then reports why.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	err := c.conn.Close(ws.StatusNormalClosure, "")
	c.cancel()
	<-c.done
	return err
}

// Hello identifies the user agent. An empty uaid asks the service for a new
// one; channelIDs lists the registrations the client believes are live.
func (c *Client) Hello(ctx context.Context, uaid string, channelIDs []string) (HelloResponse, error) {
	if channelIDs == nil {
		channelIDs = []string{}
	}
	var resp HelloResponse
	err := c.request(ctx, TypeHello, helloRequest{
		Type:       TypeHello,
		UAID:       uaid,
		ChannelIDs: channelIDs,
		UseWebPush: true,
	}, &resp)
	if err != nil {
		return resp, err
	}
	if resp.Status != StatusOK {
		return resp, fmt.Errorf("autopush: hello status %d", resp.Status)
	}
	return resp, nil
}

// Register creates a channel restricted to the given base64url server key.
func (c *Client) Register(ctx context.Context, channelID, key string) (RegisterResponse, error) {
	var resp RegisterResponse
	err := c.request(ctx, TypeRegister, registerRequest{
		Type:      TypeRegister,
		ChannelID: channelID,
		Key:       key,
	}, &resp)
	if err != nil {
		return resp, err
	}
	switch resp.Status {
	case StatusOK:
	case StatusConflict:
		return resp, ErrConflict
	default:
		return resp, fmt.Errorf("autopush: register status %d", resp.Status)
	}
	if resp.PushEndpoint == "" {
		return resp, errors.New("autopush: register response without endpoint")
	}
	return resp, nil
}

func (c *Client) Unregister(ctx context.Context, channelID string) error {
	var resp unregisterResponse
	if err := c.request(ctx, TypeUnregister, unregisterRequest{Type: TypeUnregister, ChannelID: channelID}, &resp); err != nil {
		return err
	}
	if resp.Status != StatusOK {
		return fmt.Errorf("autopush: unregister status %d", resp.Status)
	}
	return nil
}

func (c *Client) request(ctx context.Context, typ MessageType, req, resp any) error {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending, c.want = ch, typ
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pending, c.want = nil, ""
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		return fmt.Errorf("autopush: send %s: %w", typ, err)
	}

	select {
	case raw := <-ch:
		if err := json.Unmarshal(raw, resp); err != nil {
			return fmt.Errorf("autopush: decode %s: %w", typ, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("autopush: %s: %w", typ, ctx.Err())
	case <-c.done:
		return ErrClosed
	}
}

// readPump dispatches frames until the connection fails or is closed.
func (c *Client) readPump(ctx context.Context) {
	defer close(c.done)
	defer close(c.notifications)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("autopush: unparseable frame", "error", err)
			continue
		}

		switch msg.Type {
		case TypePing:
			if err := c.conn.Write(ctx, ws.MessageText, []byte("{}")); err != nil {
				c.logger.Warn("autopush: answer ping", "error", err)
			}
		case TypeNotification:
			var n Notification
			if err := json.Unmarshal(data, &n); err != nil {
				c.logger.Warn("autopush: unparseable notification", "error", err)
				continue
			}
			c.ack(ctx, n)
			select {
			case c.notifications <- n:
			case <-ctx.Done():
				return
			}
		case TypeHello, TypeRegister, TypeUnregister:
			c.deliver(msg.Type, data)
		default:
			c.logger.Debug("autopush: ignoring frame", "type", msg.Type)
		}
	}
}

func (c *Client) deliver(typ MessageType, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil || c.want != typ {
		c.logger.Debug("autopush: unsolicited reply", "type", typ)
		return
	}
	select {
	case c.pending <- json.RawMessage(data):
	default:
	}
}

func (c *Client) ack(ctx context.Context, n Notification) {
	err := wsjson.Write(ctx, c.conn, ack{
		Type:    TypeAck,
		Updates: []ackUpdate{{ChannelID: n.ChannelID, Version: n.Version}},
	})
	if err != nil {
		c.logger.Warn("autopush: ack notification", "channel_id", n.ChannelID, "error", err)
	}
}

// keepalive sends websocket pings so idle connections are not dropped.
func (c *Client) keepalive(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.logger.Debug("autopush: keepalive ping failed", "error", err)
			}
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}
