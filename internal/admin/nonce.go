package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lepinkainen/subreddit-ingest/pkg/database"
)

// NonceTable stores issued form nonces
const NonceTable = "admin_nonces"

// NonceStore issues single-use form tokens bound to an action
type NonceStore struct {
	cache *database.Cache
	ttl   time.Duration
}

// NewNonceStore creates the nonce table if needed
func NewNonceStore(ctx context.Context, db *database.Database, ttl time.Duration) (*NonceStore, error) {
	cache := database.NewCache(db, NonceTable)
	if err := cache.InitializeCache(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize nonce store: %w", err)
	}
	return newNonceStore(cache, ttl), nil
}

func newNonceStore(cache *database.Cache, ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &NonceStore{cache: cache, ttl: ttl}
}

// Create issues a nonce for action
func (n *NonceStore) Create(ctx context.Context, action string) (string, error) {
	nonce := uuid.NewString()
	if err := n.cache.Set(ctx, nonce, action, n.ttl); err != nil {
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return nonce, nil
}

// Verify consumes the nonce and reports whether it was live and issued for action
func (n *NonceStore) Verify(ctx context.Context, nonce, action string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	if _, err := uuid.Parse(nonce); err != nil {
		return false, nil
	}

	issuedFor, ok, err := n.cache.Take(ctx, nonce)
	if err != nil {
		return false, fmt.Errorf("failed to verify nonce: %w", err)
	}
	return ok && issuedFor == action, nil
}

// Cleanup removes expired nonces
func (n *NonceStore) Cleanup(ctx context.Context) error {
	return n.cache.CleanupExpired(ctx)
}
