// Package crawler drives page fetches through a rate-limited queue and hands
// each page body to a content scanner.
package crawler

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/config"
	"github.com/Sriram-PR/link-crawler/pkg/fetch"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/queue"
	"github.com/Sriram-PR/link-crawler/pkg/robots"
	"github.com/Sriram-PR/link-crawler/pkg/scan"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

// PageFetcher performs page requests
type PageFetcher interface {
	Dispatch(ctx context.Context, u *url.URL, creds models.Credentials, method string, attempt fetch.Attempt) (*fetch.Result, error)
}

// RobotsSource supplies robots.txt rules for a page's host
type RobotsSource interface {
	Get(ctx context.Context, target *url.URL, creds models.Credentials) *robotstxt.RobotsData
}

// Deps are the collaborators a PageQueue drives
type Deps struct {
	Dispatcher PageFetcher
	Scanner    scan.Scanner
	RobotsTxt  RobotsSource // Optional; consulted when fetch_robots_txt is set
}

// Handlers receive crawl events. A nil handler is a no-op.
type Handlers struct {
	// Page fires once per dequeued page, with a nil err on success
	Page func(err error, pageURL *url.URL, customData any)
	// HTML fires with the parsed document of a page
	HTML func(doc *goquery.Document, directives *robots.Directives, response *models.ResponseSummary, pageURL *url.URL, customData any)
	// Link fires for each link found on a page that is not junk
	Link func(link *scan.Link, customData any)
	// Junk fires for each link excluded by policy
	Junk func(link *scan.Link, customData any)
	// End fires when the queue has drained
	End func()
	// Filter vetoes a discovered link by returning false
	Filter func(link *scan.Link) bool
}

// pageData travels with each queued item
type pageData struct {
	Auth       models.Credentials
	CustomData any
}

// PageQueue crawls enqueued pages one at a time
type PageQueue struct {
	cfg      *config.AppConfig
	deps     Deps
	handlers Handlers
	queue    *queue.RequestQueue
	log      *logrus.Entry
}

// New creates a PageQueue. cfg must already be validated.
func New(cfg *config.AppConfig, deps Deps, handlers Handlers, log *logrus.Entry) (*PageQueue, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: crawler config is nil", utils.ErrConfigValidation)
	}
	if deps.Dispatcher == nil || deps.Scanner == nil {
		return nil, fmt.Errorf("%w: crawler needs a dispatcher and a scanner", utils.ErrConfigValidation)
	}

	pq := &PageQueue{
		cfg:      cfg,
		deps:     deps,
		handlers: handlers,
		log:      log,
	}
	pq.queue = queue.NewRequestQueue(queue.Options{
		MaxSockets:        1,
		MaxSocketsPerHost: cfg.MaxSocketsPerHost,
		RateLimit:         cfg.RateLimit,
	}, queue.Handlers{
		Item: pq.processItem,
		End:  pq.drained,
	}, log.WithField("component", "page_queue"))
	return pq, nil
}

// Enqueue parses pageURL and queues it. Credentials embedded in pageURL win
// over creds. Returns the id usable with Dequeue.
func (pq *PageQueue) Enqueue(pageURL string, customData any, creds *models.Credentials) (string, error) {
	resolved := auth.ResolveString(pageURL, creds)
	if resolved.URL == nil {
		return "", fmt.Errorf("%w: '%s'", utils.ErrInvalidURL, pageURL)
	}
	return pq.enqueueResolved(resolved, customData)
}

// EnqueueURL queues an already parsed URL. u is not modified.
func (pq *PageQueue) EnqueueURL(u *url.URL, customData any, creds *models.Credentials) (string, error) {
	if u == nil {
		return "", utils.ErrInvalidURL
	}
	return pq.enqueueResolved(auth.Resolve(u, creds), customData)
}

func (pq *PageQueue) enqueueResolved(resolved auth.Resolved, customData any) (string, error) {
	id, err := pq.queue.Enqueue(resolved.URL, pageData{Auth: resolved.Auth, CustomData: customData})
	if err != nil {
		return "", err
	}
	pq.log.WithFields(logrus.Fields{"id": id, "url": auth.Redact(resolved.URL)}).Debug("Page enqueued")
	return id, nil
}

// Dequeue removes a page that has not started yet
func (pq *PageQueue) Dequeue(id string) bool {
	return pq.queue.Dequeue(id)
}

// Pause stops link emission and new page fetches. Work in flight continues.
func (pq *PageQueue) Pause() {
	pq.deps.Scanner.Pause()
	pq.queue.Pause()
}

// Resume undoes Pause
func (pq *PageQueue) Resume() {
	pq.deps.Scanner.Resume()
	pq.queue.Resume()
}

// ClearCache forgets which links the scanner has seen
func (pq *PageQueue) ClearCache() error {
	return pq.deps.Scanner.ClearCache()
}

// NumActiveLinks returns links the scanner is delivering
func (pq *PageQueue) NumActiveLinks() int {
	return pq.deps.Scanner.NumActiveLinks()
}

// NumPages returns pages not yet completed, including the one in flight
func (pq *PageQueue) NumPages() int {
	return pq.queue.Length() + pq.queue.NumActive()
}

// NumQueuedLinks returns links waiting in the scanner
func (pq *PageQueue) NumQueuedLinks() int {
	return pq.deps.Scanner.NumQueuedLinks()
}

// State reports the scheduling state of the queue
func (pq *PageQueue) State() models.QueueState {
	switch {
	case pq.queue.IsPaused():
		return models.QueueStatePaused
	case pq.NumPages() == 0:
		return models.QueueStateDrained
	default:
		return models.QueueStateRunning
	}
}

// Close drops pending pages and cancels the page in flight
func (pq *PageQueue) Close() {
	pq.queue.Close()
}

func (pq *PageQueue) drained() {
	pq.log.Info("Page queue drained")
	if pq.handlers.End != nil {
		pq.handlers.End()
	}
}

// processItem runs one page from fetch to completion
func (pq *PageQueue) processItem(ctx context.Context, item queue.Item, done func()) {
	data, _ := item.Data.(pageData)
	job := newPageJob(item, data, done, pq.log)

	defer func() {
		if r := recover(); r != nil {
			job.log.WithFields(logrus.Fields{
				"panic_info":  r,
				"stage":       job.state.String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while processing page")
			pq.complete(job, fmt.Errorf("panic: %v", r))
		}
	}()

	job.state = models.PageStateFetching
	result, err := pq.deps.Dispatcher.Dispatch(ctx, job.pageURL, job.auth, http.MethodGet, fetch.Initial)
	if err != nil {
		pq.complete(job, err)
		return
	}
	if err := checkPage(result); err != nil {
		if result.Stream != nil {
			result.Stream.Close()
		}
		pq.complete(job, err)
		return
	}

	job.response = result.Response
	job.directives = robots.NewDirectives(pq.cfg.UserAgent)
	for _, value := range result.Response.Headers.Values("X-Robots-Tag") {
		job.directives.Header(value)
	}
	if pq.cfg.FetchRobotsTxt && pq.deps.RobotsTxt != nil {
		job.directives.SetTxt(pq.deps.RobotsTxt.Get(ctx, result.Response.URL, job.auth))
	}

	job.state = models.PageStateScanning
	job.log.WithField("final_url", auth.Redact(result.Response.URL)).Debug("Scanning page")
	err = pq.deps.Scanner.Scan(ctx, result.Stream, result.Response.URL, job.directives, job.auth, pq.scanHandlers(job))
	if err != nil {
		pq.complete(job, err)
	}
}

// scanHandlers binds scanner events to job
func (pq *PageQueue) scanHandlers(job *pageJob) scan.Handlers {
	h := pq.handlers
	return scan.Handlers{
		HTML: func(doc *goquery.Document, directives *robots.Directives) {
			if h.HTML != nil {
				h.HTML(doc, directives, job.response, job.pageURL, job.customData)
			}
		},
		Link: func(link *scan.Link) {
			if h.Link != nil {
				h.Link(link, job.customData)
			}
		},
		Junk: func(link *scan.Link) {
			if h.Junk != nil {
				h.Junk(link, job.customData)
			}
		},
		Filter: h.Filter,
		Complete: func() {
			pq.complete(job, nil)
		},
	}
}

// complete reports the page and releases the queue slot, once per job
func (pq *PageQueue) complete(job *pageJob, err error) {
	job.once.Do(func() {
		done := job.done
		defer func() {
			// Runs even if the Page handler panics so the queue keeps moving
			job.release()
			done()
		}()

		job.state = models.PageStateCompleted
		logFields := logrus.Fields{"duration": time.Since(job.startTime).String()}
		if err != nil {
			logFields["category"] = utils.CategorizeError(err)
			job.log.WithFields(logFields).Warnf("Page failed: %v", err)
		} else {
			job.log.WithFields(logFields).Info("Page completed")
		}

		if pq.handlers.Page != nil {
			pq.handlers.Page(err, job.pageURL, job.customData)
		}
	})
}

// checkPage rejects responses that cannot be scanned as HTML
func checkPage(result *fetch.Result) error {
	summary := result.Response
	if summary.StatusCode < 200 || summary.StatusCode >= 300 {
		return fmt.Errorf("%w: %d %s", utils.ErrHTMLRetrieval, summary.StatusCode, summary.StatusText)
	}
	contentType := summary.Header("Content-Type")
	if contentType == "" {
		// Servers that omit the type are given the benefit of the doubt
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || (mediaType != "text/html" && mediaType != "application/xhtml+xml") {
		return fmt.Errorf("%w but got '%s'", utils.ErrNotHTML, contentType)
	}
	return nil
}
