package reddit

import (
	"math"
	"time"

	"github.com/lepinkainen/subreddit-ingest/pkg/urlutils"
)

// baseURL resolves relative permalinks
const baseURL = "https://www.reddit.com"

// Listing represents the structure of a Reddit listing response
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []Thing `json:"children"`
		Before   string  `json:"before"`
		After    string  `json:"after"`
	} `json:"data"`
}

// Thing wraps a single listing child
type Thing struct {
	Kind string `json:"kind"`
	Data Post   `json:"data"`
}

// Post holds the fields of a listing entry that get ingested
type Post struct {
	Name       string  `json:"name"` // Fullname, e.g. t3_abc123
	Domain     string  `json:"domain"`
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
	Ups        int     `json:"ups"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	Subreddit  string  `json:"subreddit"`
}

// Posts returns the listing children in listing order
func (l *Listing) Posts() []Post {
	if l == nil {
		return nil
	}
	posts := make([]Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts
}

// FirstName returns the fullname of the first child, or "" for an empty listing
func (l *Listing) FirstName() string {
	if l == nil || len(l.Data.Children) == 0 {
		return ""
	}
	return l.Data.Children[0].Data.Name
}

// CreatedAt converts created_utc to a time, keeping sub-second precision
func (p Post) CreatedAt() time.Time {
	sec, frac := math.Modf(p.CreatedUTC)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// CommentsURL returns the absolute link to the post's discussion page
func (p Post) CommentsURL() string {
	if p.Permalink == "" {
		return ""
	}
	link, err := urlutils.ResolveURL(baseURL, p.Permalink)
	if err != nil {
		return ""
	}
	return link
}
