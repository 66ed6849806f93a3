package reddit

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy strips every element; script and style contents are dropped with their tags
var strictPolicy = bluemonday.StrictPolicy()

// StripTags removes all markup from a title and returns plain text
func StripTags(raw string) string {
	// Sanitize escapes the remaining text, so entities are decoded afterwards
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(raw)))
}

// IsSelfPost reports whether the post was submitted as a text post on the given domain
func IsSelfPost(post Post, domain string) bool {
	return asciiEqualFold(post.Domain, domain)
}

// asciiEqualFold compares a and b ignoring case in A-Z only, so non-ASCII look-alikes never match
func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if asciiLower(a[i]) != asciiLower(b[i]) {
			return false
		}
	}
	return true
}

func asciiLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
