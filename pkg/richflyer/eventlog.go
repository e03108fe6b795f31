package richflyer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// launchEventID is the event the server records when a notification opens the site.
const launchEventID = "richflyer_launch_app"

type eventLogRequest struct {
	NotificationID string `json:"notification_id"`
	EventID        string `json:"event_id"`
	EventTime      int64  `json:"event_time"`
}

// RegisterEventLog reports the stored notification to the server as having
// launched the site. It is sent at most once per received notification; the
// local record carries the sent flag. Standard channel only. A cleared
// record has no notification id and is rejected without a request.
func (c *Client) RegisterEventLog(ctx context.Context, id Identity) error {
	if _, ok := id.(StandardIdentity); !ok {
		return fmt.Errorf("richflyer.RegisterEventLog: %w", ErrUnsupportedChannel)
	}

	rec, err := c.notifications.Get(ctx)
	if err != nil {
		return fmt.Errorf("richflyer.RegisterEventLog: load notification: %w", err)
	}
	if rec == nil || rec.NotificationID == "" {
		return fmt.Errorf("richflyer.RegisterEventLog: %w", ErrNoNotification)
	}
	if rec.EventLogSent {
		return fmt.Errorf("richflyer.RegisterEventLog: %w", ErrEventLogSent)
	}

	body := eventLogRequest{
		NotificationID: rec.NotificationID,
		EventID:        launchEventID,
		EventTime:      c.now().Unix(),
	}
	path := func(deviceID string) string {
		return "/v1/devices/" + url.PathEscape(deviceID) + "/event-logs-webpush"
	}
	if err := c.callAuthorized(ctx, id, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("richflyer.RegisterEventLog: %w", err)
	}

	if err := c.markEventLogSent(ctx); err != nil {
		return fmt.Errorf("richflyer.RegisterEventLog: %w", err)
	}
	return nil
}

func (c *Client) markEventLogSent(ctx context.Context) error {
	rec, err := c.notifications.Get(ctx)
	if err != nil {
		return fmt.Errorf("load notification: %w", err)
	}
	if rec == nil {
		return nil
	}
	rec.EventLogSent = true
	if err := c.notifications.Put(ctx, *rec); err != nil {
		return fmt.Errorf("mark event log sent: %w", err)
	}
	return nil
}
