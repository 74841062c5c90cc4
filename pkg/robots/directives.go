// Package robots evaluates robot exclusion rules for a single page: the
// X-Robots-Tag header, <meta name="robots"> tags and robots.txt groups.
package robots

import (
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Directive names as they appear in headers and meta tags
const (
	All              = "all"
	NoIndex          = "noindex"
	NoFollow         = "nofollow"
	None             = "none"
	NoArchive        = "noarchive"
	NoSnippet        = "nosnippet"
	NoTranslate      = "notranslate"
	NoImageIndex     = "noimageindex"
	UnavailableAfter = "unavailable_after"
)

var knownDirectives = map[string]bool{
	All: true, NoIndex: true, NoFollow: true, None: true, NoArchive: true,
	NoSnippet: true, NoTranslate: true, NoImageIndex: true, UnavailableAfter: true,
}

// Formats seen in unavailable_after values
var dateLayouts = []string{
	time.RFC850,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822,
	time.RFC822Z,
	time.RFC3339,
	"2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 MST",
	"Monday, 02-Jan-06 15:04:05 MST",
	"2006-01-02",
}

// Directives accumulates exclusion rules for one page as seen by one user agent.
// It is safe for concurrent use.
type Directives struct {
	userAgent string

	mu               sync.RWMutex
	rules            map[string]bool
	unavailableAfter time.Time
	txt              *robotstxt.Group

	now func() time.Time
}

// NewDirectives creates an empty evaluator for userAgent
func NewDirectives(userAgent string) *Directives {
	return &Directives{
		userAgent: strings.ToLower(userAgent),
		rules:     make(map[string]bool),
		now:       time.Now,
	}
}

// Header applies an X-Robots-Tag value. A "bot: " prefix scopes the directives
// that follow it to that bot.
func (d *Directives) Header(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	applies := true
	tokens := strings.Split(value, ",")
	for i := 0; i < len(tokens); i++ {
		token := strings.TrimSpace(tokens[i])
		if token == "" {
			continue
		}

		name, rest, hasColon := strings.Cut(token, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		if hasColon && !knownDirectives[name] {
			// Bot scope, e.g. "googlebot: noindex"
			applies = d.matchesAgent(name)
			token = strings.TrimSpace(rest)
			name, rest, hasColon = strings.Cut(token, ":")
			name = strings.ToLower(strings.TrimSpace(name))
		}
		if !applies {
			continue
		}

		if name == UnavailableAfter && hasColon {
			// Dates may contain commas; absorb following tokens until one parses
			raw := strings.TrimSpace(rest)
			at, ok := parseDate(raw)
			for !ok && i+1 < len(tokens) {
				i++
				raw += "," + tokens[i]
				at, ok = parseDate(strings.TrimSpace(raw))
			}
			if ok {
				d.setUnavailableAfterLocked(at)
			}
			continue
		}
		d.applyLocked(name)
	}
}

// Meta applies a <meta name content> pair. Names other than "robots" are
// treated as bot names and only apply when they match the user agent.
func (d *Directives) Meta(name, content string) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name != "robots" && !d.matchesAgent(name) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, token := range strings.Split(content, ",") {
		directive, rest, hasColon := strings.Cut(strings.TrimSpace(token), ":")
		directive = strings.ToLower(strings.TrimSpace(directive))
		if directive == UnavailableAfter && hasColon {
			if at, ok := parseDate(strings.TrimSpace(rest)); ok {
				d.setUnavailableAfterLocked(at)
			}
			continue
		}
		d.applyLocked(directive)
	}
}

// Is reports whether directive is in effect
func (d *Directives) Is(directive string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isLocked(strings.ToLower(directive))
}

// OneIs reports whether any of directives is in effect
func (d *Directives) OneIs(directives ...string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, directive := range directives {
		if d.isLocked(strings.ToLower(directive)) {
			return true
		}
	}
	return false
}

// SetTxt attaches the robots.txt rules of the page's host
func (d *Directives) SetTxt(data *robotstxt.RobotsData) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if data == nil {
		d.txt = nil
		return
	}
	d.txt = data.FindGroup(d.userAgent)
}

// AllowsPath reports whether robots.txt permits path. Without robots.txt rules
// every path is allowed.
func (d *Directives) AllowsPath(path string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.txt == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return d.txt.Test(path)
}

// UserAgent returns the agent the directives are evaluated for
func (d *Directives) UserAgent() string {
	return d.userAgent
}

func (d *Directives) isLocked(directive string) bool {
	switch directive {
	case NoIndex:
		return d.rules[NoIndex] || d.rules[None] || d.expiredLocked()
	case NoFollow:
		return d.rules[NoFollow] || d.rules[None]
	case None:
		return d.rules[None] || (d.rules[NoIndex] && d.rules[NoFollow])
	case All:
		return !d.rules[NoIndex] && !d.rules[NoFollow] && !d.rules[None] && !d.expiredLocked()
	case UnavailableAfter:
		return d.expiredLocked()
	default:
		return d.rules[directive]
	}
}

func (d *Directives) applyLocked(directive string) {
	if !knownDirectives[directive] || directive == All {
		return
	}
	d.rules[directive] = true
}

// setUnavailableAfterLocked keeps the earliest date seen
func (d *Directives) setUnavailableAfterLocked(at time.Time) {
	if d.unavailableAfter.IsZero() || at.Before(d.unavailableAfter) {
		d.unavailableAfter = at
	}
}

func (d *Directives) expiredLocked() bool {
	return !d.unavailableAfter.IsZero() && !d.now().Before(d.unavailableAfter)
}

func (d *Directives) matchesAgent(bot string) bool {
	bot = strings.ToLower(strings.TrimSpace(bot))
	return bot != "" && d.userAgent != "" && strings.Contains(d.userAgent, bot)
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if at, err := time.Parse(layout, raw); err == nil {
			return at, true
		}
	}
	return time.Time{}, false
}
