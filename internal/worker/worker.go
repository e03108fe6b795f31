// Package worker handles delivered push messages the way a service worker
// would: it records the notification, shows it, and routes clicks.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/richflyer/internal/push"
	"github.com/dukerupert/richflyer/pkg/richflyer"
)

const emptyBody = "(with empty payload)"

// Notification is what gets shown to the user.
type Notification struct {
	Title   string
	Body    string
	Tag     string
	Icon    string
	Data    string // click target
	Actions []Action
}

type Action struct {
	Title  string
	Action string
}

// Click is a user interaction with a shown notification. Action is the
// chosen action button, empty for a click on the notification itself.
type Click struct {
	Action       string
	Notification Notification
}

// Displayer shows notifications.
type Displayer interface {
	Show(ctx context.Context, n Notification) error
}

// Opener opens a click target.
type Opener interface {
	Open(ctx context.Context, url string) error
}

type Worker struct {
	notifications richflyer.NotificationStore
	display       Displayer
	opener        Opener
	logger        *slog.Logger
	now           func() time.Time

	// AutoClick treats every shown notification as clicked.
	AutoClick bool
}

func New(notifications richflyer.NotificationStore, display Displayer, opener Opener, logger *slog.Logger) *Worker {
	return &Worker{
		notifications: notifications,
		display:       display,
		opener:        opener,
		logger:        logger,
		now:           time.Now,
	}
}

// HandlePush records and shows one decrypted push payload.
func (w *Worker) HandlePush(ctx context.Context, payload []byte) error {
	var p push.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("parse push payload: %w", err)
	}

	rec := richflyer.NotificationRecord{
		NotificationID:   p.NotificationID,
		Title:            p.Title,
		Body:             p.Body,
		ExtendedProperty: extendedProperty(p),
		ReceivedDate:     w.now().Unix(),
	}
	if err := w.notifications.Put(ctx, rec); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}

	n := render(p)
	if err := w.display.Show(ctx, n); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	w.logger.Info("notification received", "notification_id", p.NotificationID, "tag", n.Tag)

	if w.AutoClick {
		return w.HandleClick(ctx, Click{Notification: n})
	}
	return nil
}

// HandleClick marks the stored notification clicked and opens the target:
// the chosen action, else the notification's data, else the stored
// extended property, else the first action.
func (w *Worker) HandleClick(ctx context.Context, c Click) error {
	rec, err := w.notifications.Get(ctx)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	if rec != nil {
		rec.Clicked = true
		if err := w.notifications.Put(ctx, *rec); err != nil {
			return fmt.Errorf("mark notification clicked: %w", err)
		}
	}

	target := clickTarget(c, rec)
	if target == "" {
		return nil
	}
	if err := w.opener.Open(ctx, target); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

// Run handles payloads until ctx is done or payloads is closed. A payload
// that fails is logged and skipped.
func (w *Worker) Run(ctx context.Context, payloads <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-payloads:
			if !ok {
				return nil
			}
			if err := w.HandlePush(ctx, p); err != nil {
				w.logger.Error("handle push", "error", err)
			}
		}
	}
}

func extendedProperty(p push.Payload) string {
	if p.ClickAction != "" {
		return p.ClickAction
	}
	if len(p.ActionButtons) > 0 {
		return p.ActionButtons[0].Value
	}
	return ""
}

func render(p push.Payload) Notification {
	n := Notification{
		Title: p.Title,
		Body:  p.Body,
		Tag:   p.NotificationID,
		Icon:  p.Icon,
		Data:  p.URL,
	}
	if n.Body == "" {
		n.Body = emptyBody
	}
	if p.EventID != "" {
		n.Tag = p.EventID
	}
	if p.ClickAction != "" {
		n.Data = p.ClickAction
	}
	for _, b := range p.ActionButtons {
		n.Actions = append(n.Actions, Action{Title: b.Label, Action: b.Value})
	}
	return n
}

func clickTarget(c Click, rec *richflyer.NotificationRecord) string {
	switch {
	case c.Action != "":
		return c.Action
	case c.Notification.Data != "":
		return c.Notification.Data
	case rec != nil && rec.ExtendedProperty != "":
		return rec.ExtendedProperty
	case len(c.Notification.Actions) > 0:
		return c.Notification.Actions[0].Action
	default:
		return ""
	}
}
