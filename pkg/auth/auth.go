// Package auth relocates credentials embedded in URLs into a sibling value so
// that URLs handed downstream never carry user-info.
package auth

import (
	"net/url"

	"github.com/Sriram-PR/link-crawler/pkg/models"
)

// Resolved is a sanitized URL plus the credentials that apply to it
type Resolved struct {
	URL  *url.URL // nil when the input could not be parsed
	Auth models.Credentials
}

// ResolveString parses raw and resolves its credentials.
// A parse failure, or a URL without scheme and host, yields a nil URL and the
// explicit credentials (or empty ones) unchanged.
func ResolveString(raw string, explicit *models.Credentials) Resolved {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Resolved{Auth: orDefault(explicit)}
	}
	// Freshly parsed, nothing else holds a reference to u
	return extract(u, explicit)
}

// Resolve returns a copy of u with user-info removed. Credentials from the URL
// take precedence over explicit ones; u itself is never modified.
func Resolve(u *url.URL, explicit *models.Credentials) Resolved {
	if u == nil {
		return Resolved{Auth: orDefault(explicit)}
	}
	return extract(Clone(u), explicit)
}

func extract(u *url.URL, explicit *models.Credentials) Resolved {
	creds, ok := fromUserinfo(u.User)
	if !ok {
		creds = orDefault(explicit)
	}
	u.User = nil
	return Resolved{URL: u, Auth: creds}
}

// BasicAuth picks the credentials to send for u: user-info first, then auth.
// ok is false when neither carries a username or password.
func BasicAuth(u *url.URL, auth models.Credentials) (username, password string, ok bool) {
	if u != nil {
		if creds, found := fromUserinfo(u.User); found {
			return creds.Username, creds.Password, true
		}
	}
	if auth.IsEmpty() {
		return "", "", false
	}
	return auth.Username, auth.Password, true
}

// Clone returns a deep copy of u, including its user-info
func Clone(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	clone := *u
	if u.User != nil {
		user := *u.User
		clone.User = &user
	}
	return &clone
}

// Redact renders u for logging with any password masked
func Redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Redacted()
}

func fromUserinfo(info *url.Userinfo) (models.Credentials, bool) {
	if info == nil {
		return models.Credentials{}, false
	}
	password, _ := info.Password()
	creds := models.Credentials{Username: info.Username(), Password: password}
	if creds.IsEmpty() {
		return models.Credentials{}, false
	}
	return creds, true
}

func orDefault(explicit *models.Credentials) models.Credentials {
	if explicit == nil {
		return models.Credentials{}
	}
	return *explicit
}
