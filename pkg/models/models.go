package models

import (
	"net/http"
	"net/url"
)

// Credentials is a username/password pair carried alongside a URL, never inside it
type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// IsEmpty reports whether both username and password are blank
func (c Credentials) IsEmpty() bool {
	return c.Username == "" && c.Password == ""
}

// Hop is one response in a redirect chain, prior to the final response
type Hop struct {
	Headers    http.Header
	StatusCode int
	StatusText string
	URL        *url.URL
}

// ResponseSummary is the normalized view of a fetched response.
// Redirects are ordered oldest first; URL is the final URL after redirects.
type ResponseSummary struct {
	Headers    http.Header
	StatusCode int
	StatusText string
	URL        *url.URL
	Redirects  []Hop
}

// Header returns a response header value, case-insensitively
func (r *ResponseSummary) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}
