// Package publish exposes stored posts as a syndication feed.
package publish

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
	"github.com/lepinkainen/subreddit-ingest/internal/ingest"
	"github.com/lepinkainen/subreddit-ingest/internal/store"
	"github.com/lepinkainen/subreddit-ingest/pkg/feed"
	"github.com/samber/lo"
)

// SummaryLength caps the item description
const SummaryLength = 280

type PostSource interface {
	Recent(ctx context.Context, limit int) ([]store.Post, error)
	MetaFor(ctx context.Context, postIDs []int64) (map[int64]map[string]string, error)
}

// Publisher turns the newest stored posts into feed items
type Publisher struct {
	posts     PostSource
	generator *feed.Generator
	limit     int
	location  *time.Location
}

// New creates a publisher. loc is the zone post dates were written in.
func New(posts PostSource, generator *feed.Generator, limit int, loc *time.Location) *Publisher {
	if limit <= 0 {
		limit = 50
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Publisher{posts: posts, generator: generator, limit: limit, location: loc}
}

// Items returns feed items for the newest posts
func (p *Publisher) Items(ctx context.Context) ([]feed.Item, error) {
	posts, err := p.posts.Recent(ctx, p.limit)
	if err != nil {
		return nil, err
	}

	ids := lo.Map(posts, func(post store.Post, _ int) int64 { return post.ID })
	meta, err := p.posts.MetaFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	return lo.Map(posts, func(post store.Post, _ int) feed.Item {
		return p.item(post, meta[post.ID])
	}), nil
}

// Feed builds the feed
func (p *Publisher) Feed(ctx context.Context, feedType feed.FeedType) (*feeds.Feed, error) {
	items, err := p.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts for feed: %w", err)
	}
	return p.generator.Generate(items, feedType)
}

// Write builds the feed and renders it to w
func (p *Publisher) Write(ctx context.Context, w io.Writer, feedType feed.FeedType) error {
	f, err := p.Feed(ctx, feedType)
	if err != nil {
		return err
	}
	return p.generator.Write(w, f, feedType)
}

// Save builds the feed and writes it to outputPath
func (p *Publisher) Save(ctx context.Context, outputPath string, feedType feed.FeedType) (int, error) {
	f, err := p.Feed(ctx, feedType)
	if err != nil {
		return 0, err
	}
	if err := p.generator.ValidateFeed(f); err != nil {
		return 0, fmt.Errorf("invalid feed: %w", err)
	}
	return len(f.Items), p.generator.SaveToFile(f, feedType, outputPath)
}

func (p *Publisher) item(post store.Post, meta map[string]string) feed.Item {
	id := meta[ingest.MetaName]
	if id == "" {
		id = fmt.Sprintf("post-%d", post.ID)
	}

	link := meta[ingest.MetaURL]
	if link == "" {
		link = p.generator.Link
	}

	title := post.Title
	if title == "" {
		title = "(untitled)"
	}

	return feed.Item{
		ID:          id,
		Title:       title,
		Link:        link,
		Description: feed.TruncateString(post.Content, SummaryLength),
		Content:     post.Content,
		Author:      meta[ingest.MetaAuthor],
		Created:     p.created(post, meta),
	}
}

// created prefers the exact source timestamp and falls back to post_date
func (p *Publisher) created(post store.Post, meta map[string]string) time.Time {
	if raw := meta[ingest.MetaCreatedUTC]; raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			sec, frac := math.Modf(v)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC()
		}
	}
	if t, err := time.ParseInLocation(ingest.PostDateLayout, post.PostDate, p.location); err == nil {
		return t.UTC()
	}
	return post.CreatedAt
}
