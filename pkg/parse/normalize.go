// Package parse resolves and normalizes link URLs.
package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL for use as a cache key.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// drops user-info and fragments, sorts query parameters and turns an empty path into "/".
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
	normalized := *u
	normalized.User = nil

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	// Remove default ports
	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" && normalized.Opaque == "" && normalized.Host != "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	}

	if normalized.RawQuery != "" {
		// Encode sorts by key
		normalized.RawQuery = normalized.Query().Encode()
	}
	normalized.ForceQuery = false
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ResolveLink parses raw, a link as written in a document, against base.
// Surrounding whitespace is ignored. A nil base leaves relative links relative.
func ResolveLink(base *url.URL, raw string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// SameSite reports whether a and b share a host and effective port
func SameSite(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(hostWithPort(a), hostWithPort(b))
}

func hostWithPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
