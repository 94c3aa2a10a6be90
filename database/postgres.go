package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type DBClient struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewPostgresDB opens and pings the Postgres database holding user profiles.
func NewPostgresDB(ctx context.Context, dbURL string, logger *zap.Logger) (*DBClient, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL database")
	return &DBClient{DB: db, logger: logger}, nil
}

func (c *DBClient) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Error("Error closing database connection", zap.Error(err))
		} else {
			c.logger.Info("PostgreSQL database connection closed")
		}
	}
}
