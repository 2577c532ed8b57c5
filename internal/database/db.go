package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"quic-chat-system/internal/config"
	"quic-chat-system/internal/errors"
)

// DB holds the database connection pool.
type DB struct {
	*sql.DB
}

var _ Store = (*DB)(nil)

// NewConnection creates a new database connection pool.
func NewConnection(cfg *config.Config) (*DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.Newf(errors.KindDatabase, "DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Newf(errors.KindDatabase, "failed to open database connection: %v", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	// Retry the first ping; the database container may still be starting.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var lastErr error
	for i := 0; i < 3; i++ {
		if err := db.PingContext(ctx); err != nil {
			lastErr = err
			slog.Warn("Database connection attempt failed", "attempt", i+1, "error", err)
			if i < 2 {
				time.Sleep(2 * time.Second)
				continue
			}
		} else {
			lastErr = nil
			break
		}
	}

	if lastErr != nil {
		db.Close()
		return nil, errors.Newf(errors.KindDatabase, "failed to connect to database after 3 attempts: %v", lastErr)
	}

	slog.Info("Connected to PostgreSQL database")

	return &DB{db}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// schema is applied on startup. Statements are idempotent so restarting
// against an existing database is safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_login TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username)`,
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id BIGSERIAL PRIMARY KEY,
		sender_id BIGINT NOT NULL REFERENCES users (id),
		receiver_id BIGINT NOT NULL REFERENCES users (id),
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS friend_requests_pair_idx
		ON friend_requests (sender_id, receiver_id, status)`,
	`CREATE TABLE IF NOT EXISTS friends (
		user_id BIGINT NOT NULL REFERENCES users (id),
		friend_id BIGINT NOT NULL REFERENCES users (id),
		PRIMARY KEY (user_id, friend_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blocked_users (
		user_id BIGINT NOT NULL REFERENCES users (id),
		blocked_id BIGINT NOT NULL REFERENCES users (id),
		PRIMARY KEY (user_id, blocked_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id BIGSERIAL PRIMARY KEY,
		name TEXT,
		is_group BOOLEAN NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_members (
		chat_id BIGINT NOT NULL REFERENCES chats (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users (id),
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		chat_id BIGINT NOT NULL REFERENCES chats (id) ON DELETE CASCADE,
		sender_id BIGINT NOT NULL REFERENCES users (id),
		sender_username TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_ts_idx ON messages (chat_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS message_reads (
		message_id BIGINT NOT NULL REFERENCES messages (id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		read_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (message_id, user_id)
	)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (db *DB) Migrate() error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Newf(errors.KindDatabase, "migration failed: %v", err)
		}
	}
	slog.Info("Database schema is up to date")
	return nil
}

// Transaction executes fn inside a transaction, rolling back on error or
// panic.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindDatabase)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.KindDatabase)
	}

	return nil
}

// int64Placeholders renders "$start, $start+1, ..." for IN clauses.
func int64Placeholders(start, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("$%d", start+i)
	}
	return out
}

// int64Args widens a slice of ids into query arguments.
func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
