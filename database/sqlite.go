package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// NewSQLiteDB opens the local event journal. path may be ":memory:".
func NewSQLiteDB(ctx context.Context, path string, logger *zap.Logger) (*DBClient, error) {
	if path == "" {
		return nil, fmt.Errorf("JOURNAL_PATH is not set")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite journal: %w", err)
	}
	// One writer keeps in-memory databases on a single connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("error configuring sqlite journal: %w", err)
		}
	}

	logger.Info("Successfully opened SQLite event journal", zap.String("path", path))
	return &DBClient{DB: db, logger: logger}, nil
}
