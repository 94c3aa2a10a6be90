package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fitfunnel/api/models"
)

// Journal entry kinds.
const (
	JournalTrack    = "track"
	JournalIdentify = "identify"
	JournalPage     = "page"
)

const journalSchema = `
	CREATE TABLE IF NOT EXISTS event_journal (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id   TEXT NOT NULL,
		kind       TEXT NOT NULL,
		name       TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		user_id    TEXT NOT NULL DEFAULT '',
		timestamp  TEXT NOT NULL,
		url        TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL DEFAULT '{}'
	)
`

type JournalEntry struct {
	Seq    int64              `json:"seq"`
	Kind   string             `json:"kind"`
	Record models.EventRecord `json:"record"`
}

// JournalStore appends every sink call to a local SQLite file so a funnel
// run can be inspected without a ClickHouse cluster.
type JournalStore struct {
	db *sql.DB
}

func NewJournalStore(db *sql.DB) *JournalStore {
	return &JournalStore{db: db}
}

func (s *JournalStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, journalSchema); err != nil {
		return fmt.Errorf("failed to create event_journal table: %w", err)
	}
	return nil
}

func (s *JournalStore) Append(ctx context.Context, kind string, rec models.EventRecord) error {
	payload := string(rec.Properties)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_journal (event_id, kind, name, session_id, user_id, timestamp, url, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EventID, kind, rec.EventName, rec.SessionID, rec.UserID,
		models.FormatTimestamp(rec.Timestamp), rec.PageURL, payload)
	if err != nil {
		return fmt.Errorf("failed to append journal entry %s: %w", rec.EventID, err)
	}
	return nil
}

// List returns entries in append order, optionally limited to one session.
func (s *JournalStore) List(ctx context.Context, sessionID string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT seq, event_id, kind, name, session_id, user_id, timestamp, url, payload
		FROM event_journal
		WHERE (? = '' OR session_id = ?)
		ORDER BY seq ASC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query event journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e       JournalEntry
			ts      string
			payload string
		)
		if err := rows.Scan(&e.Seq, &e.Record.EventID, &e.Kind, &e.Record.EventName,
			&e.Record.SessionID, &e.Record.UserID, &ts, &e.Record.PageURL, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if e.Record.Timestamp, err = time.Parse(models.TimestampLayout, ts); err != nil {
			return nil, fmt.Errorf("bad journal timestamp %q: %w", ts, err)
		}
		e.Record.Properties = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event journal: %w", err)
	}
	return entries, nil
}
