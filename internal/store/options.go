package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lepinkainen/subreddit-ingest/pkg/database"
)

// PreUpdateFilter runs before an option is written. It may return a replacement value,
// or an error to reject the update.
type PreUpdateFilter func(ctx context.Context, value, oldValue string) (string, error)

// OptionStore keeps named string settings
type OptionStore struct {
	dbx *sqlx.DB

	mu      sync.RWMutex
	filters map[string][]PreUpdateFilter
}

// NewOptionStore creates an option store on the shared database
func NewOptionStore(db *database.Database) *OptionStore {
	return &OptionStore{
		dbx:     newDB(db),
		filters: make(map[string][]PreUpdateFilter),
	}
}

// AddPreUpdateFilter registers a filter for one option name. Filters run in registration order.
func (s *OptionStore) AddPreUpdateFilter(name string, filter PreUpdateFilter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters[name] = append(s.filters[name], filter)
}

// Get returns the stored value, or def when the option has never been set
func (s *OptionStore) Get(ctx context.Context, name, def string) (string, error) {
	value, ok, err := s.lookup(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// Update runs the option's filters and writes the result.
// It reports false without writing when the filtered value equals the stored one.
func (s *OptionStore) Update(ctx context.Context, name, value string) (bool, error) {
	oldValue, exists, err := s.lookup(ctx, name)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	filters := append([]PreUpdateFilter(nil), s.filters[name]...)
	s.mu.RUnlock()

	for _, filter := range filters {
		value, err = filter(ctx, value, oldValue)
		if err != nil {
			return false, fmt.Errorf("option %s rejected: %w", name, err)
		}
	}

	if exists && value == oldValue {
		return false, nil
	}

	_, err = s.dbx.ExecContext(ctx, `
		INSERT INTO options (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return false, fmt.Errorf("failed to update option %s: %w", name, err)
	}

	slog.Debug("Option updated", "name", name, "value", value)
	return true, nil
}

// Delete removes an option
func (s *OptionStore) Delete(ctx context.Context, name string) error {
	if _, err := s.dbx.ExecContext(ctx, `DELETE FROM options WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", name, err)
	}
	return nil
}

func (s *OptionStore) lookup(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.dbx.GetContext(ctx, &value, `SELECT value FROM options WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read option %s: %w", name, err)
	}
	return value, true, nil
}
