// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookverse-notifications/internal/common/config"

	_ "github.com/lib/pq"
)

// schema is applied by Migrate. Preference documents are stored as JSONB;
// the repositories own the column layout of the other tables.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id    TEXT PRIMARY KEY,
		document   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		category    TEXT NOT NULL,
		title       TEXT NOT NULL,
		body        TEXT NOT NULL,
		data        JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		is_read     BOOLEAN NOT NULL DEFAULT FALSE,
		action_url  TEXT,
		priority    TEXT NOT NULL,
		group_id    TEXT,
		hints       JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS email_messages (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		recipient   TEXT NOT NULL,
		subject     TEXT NOT NULL,
		body        TEXT NOT NULL,
		template_id TEXT,
		category    TEXT NOT NULL,
		variables   JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		status      TEXT NOT NULL,
		error       TEXT,
		retries     INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_messages_user ON email_messages (user_id)`,
}

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an existing handle (sqlmock in tests).
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

// Migrate creates the tables used by the repositories.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// GetDB returns the underlying *sql.DB
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
