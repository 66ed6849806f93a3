package ingest

import (
	"context"
	"time"

	"github.com/lepinkainen/subreddit-ingest/internal/reddit"
	"github.com/lepinkainen/subreddit-ingest/internal/store"
)

type ListingPort interface {
	FetchListing(ctx context.Context, before string) (*reddit.Listing, error)
}

type PostPort interface {
	ExistsByMeta(ctx context.Context, key, value string) (bool, error)
	Insert(ctx context.Context, post store.NewPost) (int64, error)
}

type OptionPort interface {
	Get(ctx context.Context, name, def string) (string, error)
	Update(ctx context.Context, name, value string) (bool, error)
}

// Recorder receives run outcomes, e.g. for Prometheus
type Recorder interface {
	RunFinished(status string, duration time.Duration, at time.Time)
	Items(outcome string, n int)
	JSONError(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RunFinished(string, time.Duration, time.Time) {}
func (nopRecorder) Items(string, int)                            {}
func (nopRecorder) JSONError(string)                             {}
