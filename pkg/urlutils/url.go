// Package urlutils provides URL helpers shared by the config and listing code.
package urlutils

import "net/url"

// IsHTTPURL reports whether s is an absolute http or https URL with a host
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ResolveURL resolves ref against base. Absolute refs are returned unchanged.
func ResolveURL(base, ref string) (string, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if rel.IsAbs() {
		return ref, nil
	}

	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(rel).String(), nil
}
