// Package ingest turns listing entries into stored posts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lepinkainen/subreddit-ingest/internal/reddit"
	"github.com/lepinkainen/subreddit-ingest/internal/store"
	"github.com/lepinkainen/subreddit-ingest/pkg/api"
	"github.com/samber/lo"
)

// CursorOption holds the fullname of the first entry seen on the previous run
const CursorOption = "before"

// PostDateLayout is the post_date format
const PostDateLayout = "2006-01-02 15:04:05"

// Meta keys attached to every ingested post
const (
	MetaName       = store.UniqueMetaKey
	MetaURL        = "reddit_url"
	MetaCreatedUTC = "reddit_created_utc"
	MetaUps        = "reddit_ups"
	MetaAuthor     = "reddit_author"
)

const (
	outcomeInserted      = "inserted"
	outcomeDuplicate     = "duplicate"
	outcomeForeignDomain = "foreign_domain"
	outcomeFailed        = "failed"
)

// Options controls how entries become posts
type Options struct {
	SelfDomain string         // Only entries on this domain are ingested, e.g. self.wordpress
	AuthorID   int64          // Author of created posts
	Status     string         // Status of created posts
	Location   *time.Location // Zone used to render post_date
}

// Result summarizes one run
type Result struct {
	Fetched       int
	ForeignDomain int
	Duplicates    int
	Inserted      int
	Failed        int
	Cursor        string
}

// Service runs the fetch, filter, dedup and insert procedure
type Service struct {
	listing  ListingPort
	posts    PostPort
	options  OptionPort
	recorder Recorder
	opts     Options
	now      func() time.Time
}

// New creates an ingest service. A nil recorder or clock falls back to a no-op recorder and time.Now.
func New(listing ListingPort, posts PostPort, options OptionPort, opts Options, recorder Recorder, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if opts.SelfDomain == "" {
		opts.SelfDomain = "self.wordpress"
	}
	if opts.AuthorID == 0 {
		opts.AuthorID = 1
	}
	if opts.Status == "" {
		opts.Status = "publish"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	return &Service{
		listing:  listing,
		posts:    posts,
		options:  options,
		recorder: recorder,
		opts:     opts,
		now:      now,
	}
}

// Run fetches the listing once and stores new self posts.
// A malformed listing body is logged and yields an empty result with a nil error.
func (s *Service) Run(ctx context.Context) (Result, error) {
	start := s.now()

	before, err := s.options.Get(ctx, CursorOption, "")
	if err != nil {
		s.finish("error", start)
		return Result{}, fmt.Errorf("failed to read cursor: %w", err)
	}

	listing, err := s.listing.FetchListing(ctx, before)
	if err != nil {
		var jsonErr *reddit.JSONError
		if errors.As(err, &jsonErr) {
			slog.Error(jsonErr.Kind.Message(), "cause", jsonErr.Err)
			s.recorder.JSONError(jsonErr.Kind.String())
			s.finish("json_error", start)
			return Result{Cursor: before}, nil
		}
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsRateLimited() {
			slog.Warn("Listing request rate limited", "url", httpErr.URL, "status", httpErr.Status)
			s.finish("rate_limited", start)
			return Result{}, fmt.Errorf("failed to fetch listing: %w", err)
		}
		s.finish("fetch_error", start)
		return Result{}, fmt.Errorf("failed to fetch listing: %w", err)
	}

	posts := listing.Posts()
	result := Result{Fetched: len(posts), Cursor: before}

	// The cursor follows the first entry whether or not it gets ingested
	if len(posts) > 0 {
		cursor := listing.FirstName()
		if _, err := s.options.Update(ctx, CursorOption, cursor); err != nil {
			slog.Error("Failed to update cursor", "cursor", cursor, "error", err)
		} else {
			result.Cursor = cursor
		}
	}

	selfPosts, foreign := lo.FilterReject(posts, func(post reddit.Post, _ int) bool {
		return reddit.IsSelfPost(post, s.opts.SelfDomain)
	})
	result.ForeignDomain = len(foreign)

	for _, post := range selfPosts {
		outcome, err := s.ingestPost(ctx, post)
		if err != nil {
			slog.Error("Failed to ingest post", "name", post.Name, "error", err)
		}

		switch outcome {
		case outcomeInserted:
			result.Inserted++
		case outcomeDuplicate:
			result.Duplicates++
		default:
			result.Failed++
		}
	}

	s.recorder.Items(outcomeInserted, result.Inserted)
	s.recorder.Items(outcomeDuplicate, result.Duplicates)
	s.recorder.Items(outcomeForeignDomain, result.ForeignDomain)
	s.recorder.Items(outcomeFailed, result.Failed)
	s.finish("ok", start)

	slog.Info("Ingest run completed",
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"foreign_domain", result.ForeignDomain,
		"failed", result.Failed,
		"cursor", result.Cursor,
	)
	return result, nil
}

func (s *Service) ingestPost(ctx context.Context, post reddit.Post) (string, error) {
	exists, err := s.posts.ExistsByMeta(ctx, MetaName, post.Name)
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to check for existing post: %w", err)
	}
	if exists {
		slog.Debug("Skipping known post", "name", post.Name)
		return outcomeDuplicate, nil
	}

	id, err := s.posts.Insert(ctx, s.newPost(post))
	if errors.Is(err, store.ErrDuplicate) {
		slog.Debug("Post inserted concurrently, skipping", "name", post.Name)
		return outcomeDuplicate, nil
	}
	if err != nil {
		return outcomeFailed, fmt.Errorf("failed to insert post: %w", err)
	}

	slog.Debug("Inserted post", "id", id, "name", post.Name, "author", post.Author)
	return outcomeInserted, nil
}

func (s *Service) newPost(post reddit.Post) store.NewPost {
	return store.NewPost{
		Title:    reddit.StripTags(post.Title),
		Content:  post.SelfText,
		Status:   s.opts.Status,
		AuthorID: s.opts.AuthorID,
		PostDate: PostDate(post.CreatedUTC, s.opts.Location),
		Meta: []store.Meta{
			{Key: MetaName, Value: post.Name},
			{Key: MetaURL, Value: post.URL},
			{Key: MetaCreatedUTC, Value: strconv.FormatFloat(post.CreatedUTC, 'f', -1, 64)},
			{Key: MetaUps, Value: strconv.Itoa(post.Ups)},
			{Key: MetaAuthor, Value: post.Author},
		},
	}
}

func (s *Service) finish(status string, start time.Time) {
	end := s.now()
	s.recorder.RunFinished(status, end.Sub(start), end)
}

// PostDate renders a unix timestamp as post_date, dropping fractional seconds
func PostDate(createdUTC float64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(int64(createdUTC), 0).In(loc).Format(PostDateLayout)
}
