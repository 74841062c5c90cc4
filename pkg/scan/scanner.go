// Package scan extracts links from fetched pages and classifies them as
// links to report or junk to skip.
package scan

import (
	"context"
	"io"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/robots"
)

// ExcludedReason says why a link was classified as junk
type ExcludedReason string

const (
	ExcludedScheme   ExcludedReason = "scheme"   // Scheme listed in excluded_schemes
	ExcludedExternal ExcludedReason = "external" // External link with exclude_external_links
	ExcludedInternal ExcludedReason = "internal" // Internal link with exclude_internal_links
	ExcludedPattern  ExcludedReason = "pattern"  // Matched an excluded_patterns entry
	ExcludedRobots   ExcludedReason = "robots"   // Robot exclusions forbid following it
	ExcludedFilter   ExcludedReason = "filter"   // Vetoed by Handlers.Filter
)

// Link is one URL found in a document
type Link struct {
	Original string   // As written in the document
	Resolved *url.URL // Nil when the link could not be parsed
	Base     *url.URL // URL the link was resolved against
	Page     *url.URL // Page the link was found on

	Tag  string // Lowercase element name, e.g. "a"
	Attr string // Attribute the URL came from, e.g. "href"
	Text string // Anchor text or alt text
	Rel  string

	Internal bool // Same host and port as Page
	SamePage bool // Internal and differing from Page only by fragment
	Cached   bool // Seen before by this scanner's cache

	Excluded       bool
	ExcludedReason ExcludedReason
	Auth           models.Credentials // Credentials of the page, for checking the link
}

// Handlers receive scan events. A nil handler is a no-op.
type Handlers struct {
	// HTML fires once per scan with the parsed document
	HTML func(doc *goquery.Document, directives *robots.Directives)
	// Link fires for every link that is not junk
	Link func(link *Link)
	// Junk fires for every excluded link
	Junk func(link *Link)
	// Filter vetoes a link by returning false. It runs before the other exclusion rules.
	Filter func(link *Link) bool
	// Complete fires once after the last link of a scan was emitted
	Complete func()
}

// Scanner consumes a page body and emits the links found in it
type Scanner interface {
	// Scan reads and closes stream, then emits events through handlers.
	// Complete is not fired when Scan returns an error.
	Scan(ctx context.Context, stream io.ReadCloser, baseURL *url.URL, directives *robots.Directives, creds models.Credentials, handlers Handlers) error
	// Pause holds link emission until Resume
	Pause()
	Resume()
	// ClearCache forgets which links were seen
	ClearCache() error
	// NumActiveLinks returns links currently being delivered to handlers
	NumActiveLinks() int
	// NumQueuedLinks returns links extracted but not yet delivered
	NumQueuedLinks() int
}
