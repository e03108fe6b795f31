package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/richflyer/pkg/richflyer"
)

// notificationName is the fixed key of the single stored notification.
const notificationName = "richflyer_notification"

// NotificationStore keeps the most recently received notification.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Get returns nil, nil when no notification has been stored.
func (s *NotificationStore) Get(ctx context.Context) (*richflyer.NotificationRecord, error) {
	var rec richflyer.NotificationRecord
	var sent, clicked int
	err := s.db.QueryRowContext(ctx,
		`SELECT notification_id, title, body, extended_property, is_sent_event_log, is_clicked_notification, received_date
		 FROM notification WHERE name = ?`, notificationName,
	).Scan(&rec.NotificationID, &rec.Title, &rec.Body, &rec.ExtendedProperty, &sent, &clicked, &rec.ReceivedDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	rec.EventLogSent = sent != 0
	rec.Clicked = clicked != 0
	return &rec, nil
}

// Put overwrites the stored notification.
func (s *NotificationStore) Put(ctx context.Context, rec richflyer.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification (name, notification_id, title, body, extended_property, is_sent_event_log, is_clicked_notification, received_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   notification_id = excluded.notification_id,
		   title = excluded.title,
		   body = excluded.body,
		   extended_property = excluded.extended_property,
		   is_sent_event_log = excluded.is_sent_event_log,
		   is_clicked_notification = excluded.is_clicked_notification,
		   received_date = excluded.received_date`,
		notificationName, rec.NotificationID, rec.Title, rec.Body, rec.ExtendedProperty,
		boolToInt(rec.EventLogSent), boolToInt(rec.Clicked), rec.ReceivedDate,
	)
	if err != nil {
		return fmt.Errorf("put notification: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
