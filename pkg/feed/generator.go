package feed

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/samber/lo"
)

// Generate creates a feed from the provided items. The feed is dated by its newest item,
// so regenerating an unchanged feed yields identical output.
func (g *Generator) Generate(items []Item, feedType FeedType) (*feeds.Feed, error) {
	if _, ok := ParseFeedType(string(feedType)); !ok {
		return nil, fmt.Errorf("unsupported feed type: %s", feedType)
	}

	updated := time.Unix(0, 0).UTC()
	if newest, ok := newestItem(items); ok {
		updated = newest
	}

	feed := &feeds.Feed{
		Title:       g.Title,
		Link:        &feeds.Link{Href: g.Link},
		Description: g.Description,
		Id:          g.Link,
		Created:     updated,
		Updated:     updated,
	}
	if g.Author != "" {
		feed.Author = &feeds.Author{Name: g.Author}
	}

	feed.Items = lo.Map(items, func(item Item, _ int) *feeds.Item {
		feedItem := &feeds.Item{
			Id:          item.ID,
			Title:       item.Title,
			Link:        &feeds.Link{Href: item.Link},
			Description: item.Description,
			Content:     item.Content,
			Created:     item.Created,
			Updated:     item.Created,
		}
		if item.Author != "" {
			feedItem.Author = &feeds.Author{Name: item.Author}
		}
		return feedItem
	})

	slog.Debug("Generated feed", "type", feedType, "items", len(feed.Items))
	return feed, nil
}

// Write renders the feed to w
func (g *Generator) Write(w io.Writer, feed *feeds.Feed, feedType FeedType) error {
	var err error
	switch feedType {
	case RSS:
		err = feed.WriteRss(w)
	case Atom:
		err = feed.WriteAtom(w)
	default:
		return fmt.Errorf("unsupported feed type: %s", feedType)
	}

	if err != nil {
		return fmt.Errorf("failed to write %s feed: %w", feedType, err)
	}
	return nil
}

// SaveToFile saves the generated feed to a specified file
func (g *Generator) SaveToFile(feed *feeds.Feed, feedType FeedType, outputPath string) error {
	// Ensure output directory exists
	outDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Error("Failed to close feed file", "error", closeErr)
		}
	}()

	if err := g.Write(file, feed, feedType); err != nil {
		return err
	}

	slog.Info("Feed saved successfully", "type", feedType, "path", outputPath)
	return nil
}

// ValidateFeed validates the generated feed structure
func (g *Generator) ValidateFeed(feed *feeds.Feed) error {
	if feed == nil {
		return fmt.Errorf("feed is nil")
	}

	if feed.Title == "" {
		return fmt.Errorf("feed title is empty")
	}

	if feed.Link == nil || feed.Link.Href == "" {
		return fmt.Errorf("feed link is empty")
	}

	// Validate feed items
	for i, item := range feed.Items {
		if err := validateFeedItem(item); err != nil {
			return fmt.Errorf("item %d validation failed: %w", i, err)
		}
	}

	return nil
}

// validateFeedItem validates individual feed items
func validateFeedItem(item *feeds.Item) error {
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("item title is empty")
	}

	if item.Link == nil || item.Link.Href == "" {
		return fmt.Errorf("item link is empty")
	}

	if item.Id == "" {
		return fmt.Errorf("item ID is empty")
	}

	return nil
}

// GetMetadata returns metadata about the generated feed
func (g *Generator) GetMetadata(feed *feeds.Feed) *Metadata {
	if feed == nil {
		return nil
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Description: feed.Description,
		ItemCount:   len(feed.Items),
		Updated:     feed.Updated,
	}

	if len(feed.Items) > 0 {
		oldest := lo.MinBy(feed.Items, func(a, b *feeds.Item) bool { return a.Created.Before(b.Created) })
		newest := lo.MaxBy(feed.Items, func(a, b *feeds.Item) bool { return a.Created.After(b.Created) })
		metadata.OldestItem = oldest.Created
		metadata.NewestItem = newest.Created
	}

	return metadata
}

func newestItem(items []Item) (time.Time, bool) {
	if len(items) == 0 {
		return time.Time{}, false
	}
	newest := lo.MaxBy(items, func(a, b Item) bool { return a.Created.After(b.Created) })
	return newest.Created, true
}

// TruncateString truncates a string to at most maxLen runes
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
