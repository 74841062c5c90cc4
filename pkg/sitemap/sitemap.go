// Package sitemap expands sitemap.xml files into page URLs for seeding a crawl.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/fetch"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/parse"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

const (
	maxSitemapSize = 50 << 20 // Protocol limit for an uncompressed sitemap
	maxIndexDepth  = 5        // Nested sitemap indexes followed before giving up
)

type urlSet struct {
	URLs []struct {
		Loc     string `xml:"loc"`
		LastMod string `xml:"lastmod"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Dispatcher is the request surface Seeder needs
type Dispatcher interface {
	Dispatch(ctx context.Context, u *url.URL, creds models.Credentials, method string, attempt fetch.Attempt) (*fetch.Result, error)
}

// Seeder collects page URLs from sitemaps and sitemap indexes
type Seeder struct {
	dispatcher Dispatcher
	log        *logrus.Entry
}

// NewSeeder creates a Seeder
func NewSeeder(dispatcher Dispatcher, log *logrus.Entry) *Seeder {
	return &Seeder{dispatcher: dispatcher, log: log.WithField("component", "sitemap")}
}

// Collect returns the distinct http(s) page URLs listed by the sitemap at
// sitemapURL, following nested indexes. Nested sitemaps that fail are
// skipped; only a failure of sitemapURL itself is returned.
func (s *Seeder) Collect(ctx context.Context, sitemapURL string, creds *models.Credentials) ([]*url.URL, error) {
	root := auth.ResolveString(sitemapURL, creds)
	if root.URL == nil {
		return nil, fmt.Errorf("%w: '%s'", utils.ErrInvalidURL, sitemapURL)
	}

	c := &collection{
		seeder:   s,
		auth:     root.Auth,
		visited:  make(map[string]bool),
		pageKeys: make(map[string]bool),
	}
	if err := c.walk(ctx, root.URL, 0); err != nil {
		return nil, err
	}
	s.log.WithField("sitemap_url", auth.Redact(root.URL)).Infof("Collected %d page URLs", len(c.pages))
	return c.pages, nil
}

// collection is the state of one Collect call
type collection struct {
	seeder   *Seeder
	auth     models.Credentials
	visited  map[string]bool // Sitemaps already fetched
	pageKeys map[string]bool // Normalized page URLs already collected
	pages    []*url.URL
}

func (c *collection) walk(ctx context.Context, sitemapURL *url.URL, depth int) error {
	sitemapLog := c.seeder.log.WithField("sitemap_url", auth.Redact(sitemapURL))
	c.visited[parse.NormalizeURL(sitemapURL)] = true

	body, err := c.fetch(ctx, sitemapURL)
	if err != nil {
		return err
	}

	var index sitemapIndex
	errIndex := xml.Unmarshal(body, &index)
	if errIndex == nil && len(index.Sitemaps) > 0 {
		sitemapLog.Debugf("Parsed as sitemap index, found %d references", len(index.Sitemaps))
		if depth >= maxIndexDepth {
			sitemapLog.Warn("Sitemap index nesting too deep, not following")
			return nil
		}
		for _, entry := range index.Sitemaps {
			nested, err := parse.ResolveLink(sitemapURL, entry.Loc)
			if err != nil || !isHTTP(nested) {
				sitemapLog.Warnf("Invalid nested sitemap URL '%s'", entry.Loc)
				continue
			}
			if c.visited[parse.NormalizeURL(nested)] {
				continue
			}
			if err := c.walk(ctx, nested, depth+1); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				sitemapLog.WithField("nested_sitemap", auth.Redact(nested)).Warnf("Skipping nested sitemap: %v", err)
			}
		}
		return nil
	}

	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return fmt.Errorf("%w: sitemap '%s' is not a sitemap index or URL set: %w", utils.ErrParsing, auth.Redact(sitemapURL), err)
	}
	sitemapLog.Debugf("Parsed as URL set, found %d URLs", len(set.URLs))
	for _, entry := range set.URLs {
		pageURL, err := parse.ResolveLink(sitemapURL, entry.Loc)
		if err != nil || !isHTTP(pageURL) {
			sitemapLog.Debugf("Skipping sitemap entry '%s'", entry.Loc)
			continue
		}
		key := parse.NormalizeURL(pageURL)
		if c.pageKeys[key] {
			continue
		}
		c.pageKeys[key] = true
		c.pages = append(c.pages, pageURL)
	}
	return nil
}

func (c *collection) fetch(ctx context.Context, sitemapURL *url.URL) ([]byte, error) {
	result, err := c.seeder.dispatcher.Dispatch(ctx, sitemapURL, c.auth, http.MethodGet, fetch.Initial)
	if err != nil {
		return nil, err
	}
	defer result.Stream.Close()

	if code := result.Response.StatusCode; code < 200 || code >= 300 {
		return nil, fmt.Errorf("sitemap '%s' returned %d %s", auth.Redact(sitemapURL), code, result.Response.StatusText)
	}
	body, err := io.ReadAll(io.LimitReader(result.Stream, maxSitemapSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	return body, nil
}

func isHTTP(u *url.URL) bool {
	return u != nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
