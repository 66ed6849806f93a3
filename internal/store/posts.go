package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lepinkainen/subreddit-ingest/pkg/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned when a post's unique meta value is already stored
var ErrDuplicate = errors.New("post already exists")

// Meta is one key/value pair attached to a post
type Meta struct {
	Key   string `db:"meta_key"`
	Value string `db:"meta_value"`
}

// NewPost describes a post to insert
type NewPost struct {
	Title    string
	Content  string
	Status   string
	AuthorID int64
	PostDate string // "2006-01-02 15:04:05" in the site time zone
	Meta     []Meta
}

// Post is a stored post row
type Post struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	Status    string    `db:"status"`
	AuthorID  int64     `db:"author_id"`
	PostDate  string    `db:"post_date"`
	CreatedAt time.Time `db:"created_at"`
}

// PostStore reads and writes posts and their metadata
type PostStore struct {
	db  *database.Database
	dbx *sqlx.DB
	now func() time.Time
}

// NewPostStore creates a post store on the shared database
func NewPostStore(db *database.Database) *PostStore {
	return &PostStore{
		db:  db,
		dbx: newDB(db),
		now: time.Now,
	}
}

// Insert writes the post and all of its meta rows in one transaction and returns the new post ID
func (s *PostStore) Insert(ctx context.Context, post NewPost) (int64, error) {
	var postID int64

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO posts (title, content, status, author_id, post_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			post.Title, post.Content, post.Status, post.AuthorID, post.PostDate, s.now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert post: %w", err)
		}

		postID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read post id: %w", err)
		}

		for _, meta := range post.Meta {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO postmeta (post_id, meta_key, meta_value) VALUES (?, ?, ?)`,
				postID, meta.Key, meta.Value); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("%w: %s=%s", ErrDuplicate, meta.Key, meta.Value)
				}
				return fmt.Errorf("failed to insert meta %s: %w", meta.Key, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return postID, nil
}

// ExistsByMeta reports whether any post carries the given meta key and value
func (s *PostStore) ExistsByMeta(ctx context.Context, key, value string) (bool, error) {
	var exists bool
	err := s.dbx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM postmeta WHERE meta_key = ? AND meta_value = ?)`, key, value)
	if err != nil {
		return false, fmt.Errorf("failed to look up meta %s: %w", key, err)
	}
	return exists, nil
}

// Recent returns the newest posts by post date
func (s *PostStore) Recent(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}

	var posts []Post
	err := s.dbx.SelectContext(ctx, &posts, `
		SELECT id, title, content, status, author_id, post_date, created_at
		FROM posts
		ORDER BY post_date DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent posts: %w", err)
	}
	return posts, nil
}

// Meta returns a post's metadata keyed by meta key
func (s *PostStore) Meta(ctx context.Context, postID int64) (map[string]string, error) {
	var rows []Meta
	err := s.dbx.SelectContext(ctx, &rows,
		`SELECT meta_key, meta_value FROM postmeta WHERE post_id = ? ORDER BY meta_id`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query meta for post %d: %w", postID, err)
	}

	meta := make(map[string]string, len(rows))
	for _, row := range rows {
		meta[row.Key] = row.Value
	}
	return meta, nil
}

// MetaFor returns metadata for several posts at once, keyed by post ID
func (s *PostStore) MetaFor(ctx context.Context, postIDs []int64) (map[int64]map[string]string, error) {
	result := make(map[int64]map[string]string, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(
		`SELECT post_id, meta_key, meta_value FROM postmeta WHERE post_id IN (?) ORDER BY meta_id`, postIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build meta query: %w", err)
	}

	var rows []struct {
		PostID int64 `db:"post_id"`
		Meta
	}
	if err := s.dbx.SelectContext(ctx, &rows, s.dbx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query meta: %w", err)
	}

	for _, row := range rows {
		if result[row.PostID] == nil {
			result[row.PostID] = make(map[string]string)
		}
		result[row.PostID][row.Key] = row.Value
	}
	return result, nil
}

// Count returns the number of stored posts
func (s *PostStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.dbx.GetContext(ctx, &count, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
		if code&0xff != sqlite3.SQLITE_CONSTRAINT {
			return false
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
