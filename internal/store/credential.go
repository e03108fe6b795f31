package store

import (
	"context"
	"database/sql"
	"fmt"
)

// authTokenKey is the local_storage key the bearer token lives under.
const authTokenKey = "rfAuthKey"

// CredentialStore caches the device's bearer token in local_storage.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) LoadToken(ctx context.Context) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, authTokenKey).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load auth token: %w", err)
	}
	return token, true, nil
}

func (s *CredentialStore) SaveToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_storage (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		authTokenKey, token,
	)
	if err != nil {
		return fmt.Errorf("save auth token: %w", err)
	}
	return nil
}

func (s *CredentialStore) ClearToken(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, authTokenKey)
	if err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	return nil
}
