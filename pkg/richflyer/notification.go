package richflyer

import (
	"context"
	"fmt"
)

// LastNotification returns the most recently received notification, or nil
// if none has been stored.
func (c *Client) LastNotification(ctx context.Context) (*NotificationRecord, error) {
	rec, err := c.notifications.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("richflyer.LastNotification: %w", err)
	}
	return rec, nil
}

// ClearLastNotification blanks the stored notification. It reports false
// when there is nothing stored.
func (c *Client) ClearLastNotification(ctx context.Context) (bool, error) {
	return c.updateNotification(ctx, "ClearLastNotification", func(rec *NotificationRecord) {
		rec.NotificationID = ""
		rec.Title = ""
		rec.Body = ""
		rec.ExtendedProperty = ""
		rec.Clicked = true
		rec.ReceivedDate = 0
	})
}

// ClearExtendedProperty removes the stored extended property.
func (c *Client) ClearExtendedProperty(ctx context.Context) (bool, error) {
	return c.updateNotification(ctx, "ClearExtendedProperty", func(rec *NotificationRecord) {
		rec.ExtendedProperty = ""
	})
}

// UpdateClickStatus records whether the stored notification was clicked.
func (c *Client) UpdateClickStatus(ctx context.Context, clicked bool) (bool, error) {
	return c.updateNotification(ctx, "UpdateClickStatus", func(rec *NotificationRecord) {
		rec.Clicked = clicked
	})
}

func (c *Client) updateNotification(ctx context.Context, op string, mutate func(*NotificationRecord)) (bool, error) {
	rec, err := c.notifications.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("richflyer.%s: %w", op, err)
	}
	if rec == nil {
		return false, nil
	}
	mutate(rec)
	if err := c.notifications.Put(ctx, *rec); err != nil {
		return false, fmt.Errorf("richflyer.%s: %w", op, err)
	}
	return true, nil
}
