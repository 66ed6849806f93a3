package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Cache provides a TTL key-value table on top of the database.
// Expiry is stored as unix seconds so comparisons do not depend on the driver's time format.
type Cache struct {
	db        *Database
	tableName string
	now       func() time.Time
}

// NewCache creates a new cache instance backed by tableName
func NewCache(db *Database, tableName string) *Cache {
	return &Cache{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}
}

// WithClock replaces the cache clock, used by tests
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// InitializeCache creates the cache table if it doesn't exist
func (c *Cache) InitializeCache(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at);
	`, c.tableName, c.tableName, c.tableName)

	return c.db.ExecuteSchema(ctx, schema)
}

// Take retrieves a live value and removes it in the same statement, so a key can be consumed once
func (c *Cache) Take(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ? AND expires_at > ? RETURNING value`, c.tableName)

	var value string
	err := c.db.DB().QueryRowContext(ctx, query, key, c.now().Unix()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to take cache value: %w", err)
	}

	return value, true, nil
}

// Set stores a value in the cache
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl).Unix()

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, c.tableName)

	if _, err := c.db.DB().ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}

	return nil
}

// CleanupExpired removes expired entries from the cache
func (c *Cache) CleanupExpired(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, c.tableName)

	result, err := c.db.DB().ExecContext(ctx, query, c.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up expired cache entries", "table", c.tableName, "count", rowsAffected)
	}

	return nil
}
