package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fitfunnel/api/models"
)

var ErrProfileNotFound = errors.New("profile not found")

const profileSchema = `
	CREATE TABLE IF NOT EXISTS user_profiles (
		user_id         TEXT PRIMARY KEY,
		traits          JSONB NOT NULL DEFAULT '{}'::jsonb,
		last_session_id TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type Profile struct {
	UserID        string            `json:"userId"`
	Traits        models.Properties `json:"traits"`
	LastSessionID string            `json:"lastSessionId"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// ProfileStore keeps the latest traits reported for each identified user.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func (s *ProfileStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, profileSchema); err != nil {
		return fmt.Errorf("failed to create user_profiles table: %w", err)
	}
	return nil
}

// UpsertProfile merges traits into the stored profile; newer keys win.
func (s *ProfileStore) UpsertProfile(ctx context.Context, userID, sessionID string, traits models.Properties) error {
	data, err := json.Marshal(traits.Clone())
	if err != nil {
		return fmt.Errorf("failed to encode traits for user '%s': %w", userID, err)
	}

	query := `
		INSERT INTO user_profiles (user_id, traits, last_session_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET traits = user_profiles.traits || EXCLUDED.traits,
		    last_session_id = EXCLUDED.last_session_id,
		    updated_at = NOW();
	`
	if _, err := s.db.ExecContext(ctx, query, userID, string(data), sessionID); err != nil {
		return fmt.Errorf("failed to upsert profile for user '%s': %w", userID, err)
	}
	return nil
}

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile := &Profile{}
	var traits []byte
	query := `
		SELECT user_id, traits, last_session_id, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1;
	`
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&traits,
		&profile.LastSessionID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user '%s': %w", userID, ErrProfileNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if err := json.Unmarshal(traits, &profile.Traits); err != nil {
		return nil, fmt.Errorf("failed to decode traits for user '%s': %w", userID, err)
	}
	return profile, nil
}
