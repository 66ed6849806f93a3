// Package preview browses ingested posts in a Bubble Tea TUI.
package preview

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Entry is one stored post with its meta
type Entry struct {
	ID       int64
	Title    string
	Content  string
	Status   string
	PostDate string
	Meta     map[string]string
}

func (e Entry) meta(key string) string {
	return e.Meta[key]
}

// Ups returns the reddit_ups meta as a number, zero when missing
func (e Entry) Ups() int {
	n, _ := strconv.Atoi(e.meta("reddit_ups"))
	return n
}

// CreatedAt returns the reddit_created_utc meta as a time, zero when missing
func (e Entry) CreatedAt() time.Time {
	secs, err := strconv.ParseFloat(e.meta("reddit_created_utc"), 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(int64(secs), 0).UTC()
}

// wrapText wraps text to the specified width, breaking at word boundaries
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var line strings.Builder
		lineLen := 0
		for _, word := range strings.Fields(paragraph) {
			wordLen := len([]rune(word))
			if lineLen > 0 && lineLen+1+wordLen > width {
				lines = append(lines, line.String())
				line.Reset()
				lineLen = 0
			}
			if lineLen > 0 {
				line.WriteString(" ")
				lineLen++
			}
			line.WriteString(word)
			lineLen += wordLen
		}
		lines = append(lines, line.String())
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// FormatCompactListItem formats a post in one line
// Example: " 1. [  12↑] 2024-03-01 10:00:00  Post Title"
func FormatCompactListItem(index int, entry Entry) string {
	title := entry.Title
	const maxTitleLength = 70
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}

	return fmt.Sprintf("%2d. [%4d↑] %s  %s", index+1, entry.Ups(), entry.PostDate, title)
}

// FormatDetailedItem formats a post with its reddit metadata
func FormatDetailedItem(entry Entry, now time.Time) string {
	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(&b, "Title: %s\n", entry.Title)
	if link := entry.meta("reddit_url"); link != "" {
		fmt.Fprintf(&b, "Link: %s\n", link)
	}
	if author := entry.meta("reddit_author"); author != "" {
		fmt.Fprintf(&b, "Author: %s\n", author)
	}
	fmt.Fprintf(&b, "Ups: %d | Status: %s\n", entry.Ups(), entry.Status)
	fmt.Fprintf(&b, "Post date: %s\n", entry.PostDate)
	if created := entry.CreatedAt(); !created.IsZero() {
		fmt.Fprintf(&b, "Posted: %s\n", formatTimeAgo(created, now))
	}

	if content := entry.Content; content != "" {
		const maxContentLength = 1000
		if runes := []rune(content); len(runes) > maxContentLength {
			content = string(runes[:maxContentLength]) + "..."
		}
		fmt.Fprintf(&b, "\nContent:\n%s\n", wrapText(content, 70))
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// FormatMeta lists all meta fields sorted by key
func FormatMeta(entry Entry) string {
	if len(entry.Meta) == 0 {
		return "No meta stored\n"
	}

	keys := lo.Keys(entry.Meta)
	slices.Sort(keys)
	width := len(lo.MaxBy(keys, func(a, b string) bool { return len(a) > len(b) }))

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%-*s  %s\n", width, key, entry.Meta[key])
	}
	return b.String()
}

// formatTimeAgo formats t relative to now as "X ago"
func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
