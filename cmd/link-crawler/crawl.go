package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/config"
	"github.com/Sriram-PR/link-crawler/pkg/crawler"
	"github.com/Sriram-PR/link-crawler/pkg/fetch"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/parse"
	"github.com/Sriram-PR/link-crawler/pkg/proxy"
	"github.com/Sriram-PR/link-crawler/pkg/robots"
	"github.com/Sriram-PR/link-crawler/pkg/scan"
	"github.com/Sriram-PR/link-crawler/pkg/sitemap"
	"github.com/Sriram-PR/link-crawler/pkg/storage"
)

// crawlOptions are the crawl subcommand's inputs beyond the config file
type crawlOptions struct {
	URLs      []string
	Sitemaps  []string // Sitemap URLs whose pages are added as seeds
	Username  string
	Password  string
	Recursive bool   // Follow internal <a> links
	CacheDir  string // Badger directory; empty keeps it in memory
}

// crawlSummary counts what a crawl reported
type crawlSummary struct {
	Pages       int
	FailedPages int
	Links       int
	Junk        int
}

func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl pages and print their links",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(opts.Sitemaps) == 0 {
				return errors.New("requires at least one URL or --sitemap")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			logLevel, _ := cmd.Flags().GetString("loglevel")
			log := setupLogger(logLevel)

			cfg, warnings, err := loadConfig(configFile)
			for _, w := range warnings {
				log.Warn(w)
			}
			if err != nil {
				return err
			}
			logAppConfig(cfg, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts.URLs = args
			summary, err := runCrawl(ctx, cfg, opts, cmd.OutOrStdout(), log)
			if errors.Is(err, context.Canceled) {
				log.Warn("Crawl cancelled gracefully.")
				return nil
			}
			if err != nil {
				return err
			}
			log.Infof("Crawl finished: %d pages (%d failed), %d links, %d junk",
				summary.Pages, summary.FailedPages, summary.Links, summary.Junk)
			if summary.FailedPages > 0 {
				return fmt.Errorf("%w: %d of %d", errPagesFailed, summary.FailedPages, summary.Pages)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Username, "user", "", "Basic auth username for pages without URL credentials")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Basic auth password")
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "Also crawl internal links found on crawled pages")
	cmd.Flags().StringSliceVar(&opts.Sitemaps, "sitemap", nil, "Sitemap URL to read seed pages from (repeatable)")
	cmd.Flags().StringVar(&opts.CacheDir, "cache-dir", "", "Directory for the badger link cache (in memory when empty)")
	return cmd
}

// crawlReport writes crawl events as tab separated lines
type crawlReport struct {
	mu      sync.Mutex
	out     io.Writer
	summary crawlSummary
}

func (r *crawlReport) page(err error, pageURL *url.URL) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Pages++
	if err != nil {
		r.summary.FailedPages++
		fmt.Fprintf(r.out, "PAGE\t%s\tFAIL\t%v\n", auth.Redact(pageURL), err)
		return
	}
	fmt.Fprintf(r.out, "PAGE\t%s\tOK\n", auth.Redact(pageURL))
}

func (r *crawlReport) link(link *scan.Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Links++
	fmt.Fprintf(r.out, "LINK\t%s\t%s\n", linkString(link), auth.Redact(link.Page))
}

func (r *crawlReport) junk(link *scan.Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Junk++
	fmt.Fprintf(r.out, "JUNK\t%s\t%s\t%s\n", linkString(link), auth.Redact(link.Page), link.ExcludedReason)
}

func linkString(link *scan.Link) string {
	if link.Resolved == nil {
		return link.Original
	}
	return auth.Redact(link.Resolved)
}

// runCrawl crawls opts.URLs and blocks until the page queue drains or ctx
// is done.
func runCrawl(ctx context.Context, cfg *config.AppConfig, opts crawlOptions, out io.Writer, log *logrus.Logger) (crawlSummary, error) {
	entry := logrus.NewEntry(log)

	// --- HTTP ---
	transport := fetch.NewTransport(cfg.HTTPClientSettings)
	client := fetch.NewClient(cfg.HTTPClientSettings, transport, entry.WithField("component", "http_client"))
	var agents fetch.AgentSource
	if !cfg.DisableProxy {
		agents = proxy.NewAgentCache(proxy.FromEnvironment(), cfg.UserAgent, entry.WithField("component", "proxy"),
			proxy.WithBaseTransport(transport))
	}
	dispatcher := fetch.NewDispatcher(client, agents, fetch.Options{
		UserAgent:    cfg.UserAgent,
		Retry405Head: cfg.ShouldRetry405Head(),
	}, entry.WithField("component", "dispatcher"))

	// --- Link cache ---
	var cache storage.LinkCache
	switch cfg.CacheBackend {
	case config.CacheBackendBadger:
		badgerCache, err := storage.NewBadgerCache(opts.CacheDir, entry.WithField("component", "link_cache"))
		if err != nil {
			return crawlSummary{}, err
		}
		cache = badgerCache
	default:
		cache = storage.NewMemoryCache()
	}
	defer cache.Close()

	// --- Scanner and queue ---
	scanOpts, err := scan.OptionsFromConfig(cfg)
	if err != nil {
		return crawlSummary{}, err
	}
	scanner := scan.NewHTMLScanner(scanOpts, cache, entry.WithField("component", "scanner"))

	report := &crawlReport{out: out}
	ended := make(chan struct{}, 1)
	var explicit *models.Credentials
	if opts.Username != "" || opts.Password != "" {
		explicit = &models.Credentials{Username: opts.Username, Password: opts.Password}
	}

	var (
		pq        *crawler.PageQueue
		visitedMu sync.Mutex
		visited   = make(map[string]struct{})
	)
	// markVisited reports whether u is new to this crawl
	markVisited := func(u *url.URL) bool {
		key := parse.NormalizeURL(u)
		visitedMu.Lock()
		defer visitedMu.Unlock()
		if _, ok := visited[key]; ok {
			return false
		}
		visited[key] = struct{}{}
		return true
	}

	handlers := crawler.Handlers{
		Page: func(err error, pageURL *url.URL, _ any) { report.page(err, pageURL) },
		Link: func(link *scan.Link, _ any) {
			report.link(link)
			if opts.Recursive && link.Tag == "a" && link.Internal && !link.SamePage && markVisited(link.Resolved) {
				creds := link.Auth
				if _, err := pq.EnqueueURL(link.Resolved, nil, &creds); err != nil {
					log.Debugf("Not following %s: %v", linkString(link), err)
				}
			}
		},
		Junk: func(link *scan.Link, _ any) { report.junk(link) },
		End: func() {
			select {
			case ended <- struct{}{}:
			default:
			}
		},
	}

	deps := crawler.Deps{Dispatcher: dispatcher, Scanner: scanner}
	if cfg.FetchRobotsTxt {
		deps.RobotsTxt = robots.NewTxtHandler(dispatcher, entry.WithField("component", "robots_txt"))
	}
	pq, err = crawler.New(cfg, deps, handlers, entry.WithField("component", "crawler"))
	if err != nil {
		return crawlSummary{}, err
	}
	defer pq.Close()

	// Seed while paused so End cannot fire between seeds
	pq.Pause()
	seeded := 0
	for _, raw := range opts.URLs {
		resolved := auth.ResolveString(raw, explicit)
		if resolved.URL == nil {
			log.Errorf("Skipping invalid URL '%s'", raw)
			continue
		}
		markVisited(resolved.URL)
		if _, err := pq.Enqueue(raw, nil, explicit); err != nil {
			log.Errorf("Skipping '%s': %v", raw, err)
			continue
		}
		seeded++
	}
	seeder := sitemap.NewSeeder(dispatcher, entry)
	for _, raw := range opts.Sitemaps {
		resolved := auth.ResolveString(raw, explicit)
		if resolved.URL == nil {
			log.Errorf("Skipping invalid sitemap URL '%s'", raw)
			continue
		}
		pages, err := seeder.Collect(ctx, resolved.URL.String(), &resolved.Auth)
		if err != nil {
			log.Errorf("Skipping sitemap '%s': %v", auth.Redact(resolved.URL), err)
			continue
		}
		for _, pageURL := range pages {
			if !markVisited(pageURL) {
				continue
			}
			if _, err := pq.EnqueueURL(pageURL, nil, &resolved.Auth); err == nil {
				seeded++
			}
		}
	}
	if seeded == 0 {
		return crawlSummary{}, errors.New("no valid URLs to crawl")
	}
	pq.Resume()

	select {
	case <-ended:
	case <-ctx.Done():
		log.Warnf("Crawl interrupted: %v", ctx.Err())
		pq.Close()
	}

	report.mu.Lock()
	defer report.mu.Unlock()
	return report.summary, ctx.Err()
}
