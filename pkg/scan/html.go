package scan

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/config"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/parse"
	"github.com/Sriram-PR/link-crawler/pkg/robots"
	"github.com/Sriram-PR/link-crawler/pkg/storage"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

// linkAttrs maps each element that can carry a link to its URL attribute
var linkAttrs = map[string]string{
	"a":      "href",
	"area":   "href",
	"form":   "action",
	"iframe": "src",
	"img":    "src",
	"link":   "href",
	"script": "src",
}

const linkSelector = "a[href], area[href], form[action], iframe[src], img[src], link[href], script[src]"

// Options controls link classification
type Options struct {
	ExcludedSchemes      []string
	ExcludeExternalLinks bool
	ExcludeInternalLinks bool
	ExcludedPatterns     []*regexp.Regexp // Matched against the absolute link URL
	HonorRobotExclusions bool
}

// OptionsFromConfig builds Options from a validated config
func OptionsFromConfig(cfg *config.AppConfig) (Options, error) {
	patterns, err := utils.CompileRegexPatterns(cfg.ExcludedPatterns)
	if err != nil {
		return Options{}, err
	}
	return Options{
		ExcludedSchemes:      cfg.ExcludedSchemes,
		ExcludeExternalLinks: cfg.ExcludeExternalLinks,
		ExcludeInternalLinks: cfg.ExcludeInternalLinks,
		ExcludedPatterns:     patterns,
		HonorRobotExclusions: cfg.ShouldHonorRobotExclusions(),
	}, nil
}

// rawLink is a link as extracted, before resolution
type rawLink struct {
	tag, attr, value, text, rel string
}

var _ Scanner = (*HTMLScanner)(nil)

// HTMLScanner is a Scanner for HTML documents, built on goquery
type HTMLScanner struct {
	opts    Options
	schemes map[string]bool
	cache   storage.LinkCache
	log     *logrus.Entry

	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
	queued int
	active int
}

// NewHTMLScanner creates an HTMLScanner. cache records seen links and may be
// shared between scanners.
func NewHTMLScanner(opts Options, cache storage.LinkCache, log *logrus.Entry) *HTMLScanner {
	if cache == nil {
		cache = storage.NewMemoryCache()
	}
	s := &HTMLScanner{
		opts:    opts,
		schemes: make(map[string]bool, len(opts.ExcludedSchemes)),
		cache:   cache,
		log:     log,
	}
	for _, scheme := range opts.ExcludedSchemes {
		s.schemes[strings.TrimSuffix(strings.ToLower(scheme), ":")] = true
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Scan parses stream as HTML and emits its links. It blocks until every link
// was emitted, ctx is done or parsing fails.
func (s *HTMLScanner) Scan(ctx context.Context, stream io.ReadCloser, baseURL *url.URL, directives *robots.Directives, creds models.Credentials, handlers Handlers) error {
	if stream == nil {
		return fmt.Errorf("%w: no content stream", utils.ErrParsing)
	}
	doc, err := goquery.NewDocumentFromReader(stream)
	stream.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", utils.ErrParsing, err)
	}
	if directives == nil {
		directives = robots.NewDirectives("")
	}
	pageLog := s.log.WithField("page", auth.Redact(baseURL))

	base := baseURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := parse.ResolveLink(baseURL, href); err == nil {
			base = resolved
		} else {
			pageLog.Debugf("Ignoring invalid <base href=%q>: %v", href, err)
		}
	}

	doc.Find("meta[name][content]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		content, _ := sel.Attr("content")
		directives.Meta(name, content)
	})

	if handlers.HTML != nil {
		handlers.HTML(doc, directives)
	}

	found := extractLinks(doc)
	pageLog.Debugf("Extracted %d links", len(found))

	s.mu.Lock()
	s.queued += len(found)
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.wake)
	defer stop()

	emitted := 0
	defer func() {
		// Links never emitted, after cancellation or a handler panic
		s.mu.Lock()
		s.queued -= len(found) - emitted
		s.mu.Unlock()
	}()

	for _, raw := range found {
		if err := s.waitWhilePaused(ctx); err != nil {
			return err
		}
		emitted++
		s.emit(s.buildLink(raw, base, baseURL, creds), directives, handlers, pageLog)
	}

	if handlers.Complete != nil {
		handlers.Complete()
	}
	return nil
}

// emit classifies link and delivers it to the Link or Junk handler
func (s *HTMLScanner) emit(link *Link, directives *robots.Directives, handlers Handlers, pageLog *logrus.Entry) {
	s.mu.Lock()
	s.queued--
	s.active++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	s.classify(link, directives, handlers.Filter, pageLog)
	if link.Excluded {
		if handlers.Junk != nil {
			handlers.Junk(link)
		}
		return
	}
	if handlers.Link != nil {
		handlers.Link(link)
	}
}

func extractLinks(doc *goquery.Document) []rawLink {
	var found []rawLink
	doc.Find(linkSelector).Each(func(_ int, sel *goquery.Selection) {
		tag := goquery.NodeName(sel)
		attr, ok := linkAttrs[tag]
		if !ok {
			return
		}
		value, _ := sel.Attr(attr)
		link := rawLink{tag: tag, attr: attr, value: value}
		link.rel, _ = sel.Attr("rel")

		switch tag {
		case "a", "area":
			link.text = strings.TrimSpace(sel.Text())
		case "img":
			link.text, _ = sel.Attr("alt")
		}
		found = append(found, link)
	})
	return found
}

func (s *HTMLScanner) buildLink(raw rawLink, base, page *url.URL, creds models.Credentials) *Link {
	link := &Link{
		Original: raw.value,
		Base:     base,
		Page:     page,
		Tag:      raw.tag,
		Attr:     raw.attr,
		Text:     raw.text,
		Rel:      raw.rel,
		Auth:     creds,
	}
	resolved, err := parse.ResolveLink(base, raw.value)
	if err != nil || !resolved.IsAbs() {
		return link
	}
	link.Resolved = resolved
	link.Internal = parse.SameSite(resolved, page)
	link.SamePage = link.Internal && parse.NormalizeURL(resolved) == parse.NormalizeURL(page)
	return link
}

// classify marks link excluded when a rule applies, otherwise looks it up in the cache
func (s *HTMLScanner) classify(link *Link, directives *robots.Directives, filter func(*Link) bool, pageLog *logrus.Entry) {
	if reason := s.exclusion(link, directives, filter); reason != "" {
		link.Excluded = true
		link.ExcludedReason = reason
		return
	}
	if link.Resolved == nil {
		return
	}

	seen, err := s.cache.Seen(parse.NormalizeURL(link.Resolved))
	if err != nil {
		pageLog.Warnf("Link cache lookup failed: %v", err)
		return
	}
	link.Cached = seen
}

func (s *HTMLScanner) exclusion(link *Link, directives *robots.Directives, filter func(*Link) bool) ExcludedReason {
	if filter != nil && !filter(link) {
		return ExcludedFilter
	}
	if link.Resolved == nil {
		// Unparsable links are reported, not skipped
		return ""
	}

	switch {
	case s.schemes[strings.ToLower(link.Resolved.Scheme)]:
		return ExcludedScheme
	case s.opts.ExcludeExternalLinks && !link.Internal:
		return ExcludedExternal
	case s.opts.ExcludeInternalLinks && link.Internal:
		return ExcludedInternal
	case utils.MatchAny(s.opts.ExcludedPatterns, link.Resolved.String()):
		return ExcludedPattern
	}

	if s.opts.HonorRobotExclusions {
		if directives.OneIs(robots.NoFollow, robots.NoIndex) || hasNoFollow(link.Rel) {
			return ExcludedRobots
		}
		if link.Internal && !directives.AllowsPath(link.Resolved.RequestURI()) {
			return ExcludedRobots
		}
	}
	return ""
}

func hasNoFollow(rel string) bool {
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if token == "nofollow" {
			return true
		}
	}
	return false
}

// Pause holds emission before the next link. A link being delivered finishes.
func (s *HTMLScanner) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *HTMLScanner) Resume() {
	s.mu.Lock()
	s.paused = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *HTMLScanner) ClearCache() error {
	return s.cache.Clear()
}

func (s *HTMLScanner) NumActiveLinks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *HTMLScanner) NumQueuedLinks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}

func (s *HTMLScanner) waitWhilePaused(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && ctx.Err() == nil {
		s.cond.Wait()
	}
	return ctx.Err()
}

func (s *HTMLScanner) wake() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}
