package preview

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func sampleEntry() Entry {
	return Entry{
		ID:       7,
		Title:    "How do I change the admin URL?",
		Content:  "I want to move wp-admin somewhere else.",
		Status:   "publish",
		PostDate: "2024-03-01 10:00:00",
		Meta: map[string]string{
			"reddit_name":        "t3_abc",
			"reddit_url":         "https://www.reddit.com/r/Wordpress/comments/abc/",
			"reddit_created_utc": "1709287200",
			"reddit_ups":         "12",
			"reddit_author":      "alice",
		},
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{name: "fits", text: "short line", width: 20, want: "short line"},
		{name: "wraps at words", text: "one two three four", width: 9, want: "one two\nthree\nfour"},
		{name: "keeps paragraphs", text: "first\nsecond", width: 20, want: "first\nsecond"},
		{name: "long word stays whole", text: "supercalifragilistic", width: 5, want: "supercalifragilistic"},
		{name: "default width", text: "a b", width: 0, want: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapText(tt.text, tt.width); got != tt.want {
				t.Errorf("wrapText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatCompactListItem(t *testing.T) {
	got := FormatCompactListItem(0, sampleEntry())
	want := " 1. [  12↑] 2024-03-01 10:00:00  How do I change the admin URL?"
	if got != want {
		t.Errorf("FormatCompactListItem() = %q, want %q", got, want)
	}

	long := sampleEntry()
	long.Title = strings.Repeat("ä", 100)
	got = FormatCompactListItem(9, long)
	if !strings.HasSuffix(got, strings.Repeat("ä", 67)+"...") {
		t.Errorf("long title not truncated on runes: %q", got)
	}
	if !strings.HasPrefix(got, "10. ") {
		t.Errorf("unexpected index prefix: %q", got)
	}
}

func TestFormatDetailedItem(t *testing.T) {
	now := time.Unix(1709287200, 0).Add(3 * time.Hour)
	got := FormatDetailedItem(sampleEntry(), now)

	for _, want := range []string{
		"Title: How do I change the admin URL?",
		"Link: https://www.reddit.com/r/Wordpress/comments/abc/",
		"Author: alice",
		"Ups: 12 | Status: publish",
		"Posted: 3 hours ago",
		"I want to move wp-admin somewhere else.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatDetailedItem() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatMeta(t *testing.T) {
	got := FormatMeta(sampleEntry())
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 meta lines, got %d: %q", len(lines), got)
	}
	if lines[0] != "reddit_author       alice" {
		t.Errorf("first line = %q", lines[0])
	}
	if FormatMeta(Entry{}) != "No meta stored\n" {
		t.Error("expected placeholder for empty meta")
	}
}

func TestFormatTimeAgo(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{2 * time.Hour, "2 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{8 * 24 * time.Hour, "2024-03-02"},
	}

	for _, tt := range tests {
		if got := formatTimeAgo(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("formatTimeAgo(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModel_Navigation(t *testing.T) {
	second := sampleEntry()
	second.ID = 8
	second.Title = "Second"

	var model tea.Model = NewModel([]Entry{sampleEntry(), second}, "r/wordpress")

	model, _ = model.Update(key("j"))
	model, _ = model.Update(key("j"))
	if m := model.(Model); m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}

	model, _ = model.Update(key("enter"))
	m := model.(Model)
	if m.viewMode != DetailViewMode || m.selectedIndex != 1 {
		t.Fatalf("expected detail view of entry 1, got mode %d index %d", m.viewMode, m.selectedIndex)
	}
	if !strings.Contains(m.View(), "Title: Second") {
		t.Errorf("detail view missing title:\n%s", m.View())
	}

	model, _ = model.Update(key("m"))
	if !strings.Contains(model.View(), "Meta for post 8") {
		t.Errorf("meta view missing header:\n%s", model.View())
	}

	model, _ = model.Update(key("esc"))
	if m := model.(Model); m.viewMode != ListViewMode {
		t.Errorf("esc should return to list, got mode %d", m.viewMode)
	}

	_, cmd := model.Update(key("q"))
	if cmd == nil {
		t.Error("q should quit")
	}
}
