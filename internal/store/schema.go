// Package store persists ingested posts, their metadata and named options in SQLite.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lepinkainen/subreddit-ingest/pkg/database"
)

// UniqueMetaKey is the only meta key whose values must be unique across posts
const UniqueMetaKey = "reddit_name"

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'publish',
		author_id INTEGER NOT NULL DEFAULT 1,
		post_date TEXT NOT NULL,           -- local "2006-01-02 15:04:05"
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_post_date ON posts(post_date);

	CREATE TABLE IF NOT EXISTS postmeta (
		meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		meta_key TEXT NOT NULL,
		meta_value TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_postmeta_post_id ON postmeta(post_id);
	CREATE INDEX IF NOT EXISTS idx_postmeta_key_value ON postmeta(meta_key, meta_value);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_postmeta_reddit_name
		ON postmeta(meta_value) WHERE meta_key = 'reddit_name';

	CREATE TABLE IF NOT EXISTS options (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// InitializeSchema creates the post, meta and option tables if they don't exist
func InitializeSchema(ctx context.Context, db *database.Database) error {
	if err := db.ExecuteSchema(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize store schema: %w", err)
	}

	slog.Debug("Store schema initialized", "path", db.Path())
	return nil
}

// newDB wraps the shared connection for sqlx. The driver name only selects the '?' bind style.
func newDB(db *database.Database) *sqlx.DB {
	return sqlx.NewDb(db.DB(), "sqlite3")
}
