// Package feed renders stored posts as RSS or Atom.
package feed

import "time"

// Generator handles RSS/Atom feed generation
type Generator struct {
	Title       string
	Description string
	Link        string
	Author      string
}

// NewGenerator creates a new feed generator
func NewGenerator(title, description, link, author string) *Generator {
	return &Generator{
		Title:       title,
		Description: description,
		Link:        link,
		Author:      author,
	}
}

// Item represents a feed item
type Item struct {
	ID          string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Created     time.Time
	Categories  []string
}

// Metadata contains metadata about a generated feed
type Metadata struct {
	Title       string
	Description string
	ItemCount   int
	Updated     time.Time
	OldestItem  time.Time
	NewestItem  time.Time
}

// FeedType represents the type of feed to generate
type FeedType string

const (
	RSS  FeedType = "rss"
	Atom FeedType = "atom"
)

// ContentType returns the HTTP media type for the feed type
func (t FeedType) ContentType() string {
	switch t {
	case Atom:
		return "application/atom+xml; charset=utf-8"
	case RSS:
		return "application/rss+xml; charset=utf-8"
	default:
		return "application/xml; charset=utf-8"
	}
}

// ParseFeedType validates a feed type name
func ParseFeedType(s string) (FeedType, bool) {
	switch FeedType(s) {
	case RSS, Atom:
		return FeedType(s), true
	default:
		return "", false
	}
}
