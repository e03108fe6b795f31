package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/richflyer/internal/model"
)

// SubscriptionStore persists the single push service registration.
type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// Load returns nil, nil when nothing has been saved.
func (s *SubscriptionStore) Load(ctx context.Context) (*model.PushState, error) {
	var st model.PushState
	err := s.db.QueryRowContext(ctx,
		`SELECT uaid, channel_id, endpoint, auth_secret, private_key, updated_at
		 FROM push_subscription WHERE id = 1`,
	).Scan(&st.UAID, &st.ChannelID, &st.Endpoint, &st.AuthSecret, &st.PrivateKey, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load push state: %w", err)
	}
	return &st, nil
}

func (s *SubscriptionStore) Save(ctx context.Context, st model.PushState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscription (id, uaid, channel_id, endpoint, auth_secret, private_key, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   uaid = excluded.uaid,
		   channel_id = excluded.channel_id,
		   endpoint = excluded.endpoint,
		   auth_secret = excluded.auth_secret,
		   private_key = excluded.private_key,
		   updated_at = excluded.updated_at`,
		st.UAID, st.ChannelID, st.Endpoint, st.AuthSecret, st.PrivateKey,
	)
	if err != nil {
		return fmt.Errorf("save push state: %w", err)
	}
	return nil
}

// ClearSubscription drops the channel and keys but keeps the user agent id
// so the next hello resumes the same push service identity.
func (s *SubscriptionStore) ClearSubscription(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscription
		 SET channel_id = '', endpoint = '', auth_secret = NULL, private_key = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = 1`,
	)
	if err != nil {
		return fmt.Errorf("clear push subscription: %w", err)
	}
	return nil
}
