package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/link-crawler/pkg/fetch"
	"github.com/Sriram-PR/link-crawler/pkg/models"
)

// maxTxtSize caps how much of a robots.txt body is read
const maxTxtSize = 512 << 10

// Dispatcher is the request surface TxtHandler needs
type Dispatcher interface {
	Dispatch(ctx context.Context, u *url.URL, creds models.Credentials, method string, attempt fetch.Attempt) (*fetch.Result, error)
}

// TxtHandler fetches, parses and caches robots.txt per scheme and host
type TxtHandler struct {
	dispatcher Dispatcher
	cache      map[string]*robotstxt.RobotsData // scheme://host -> parsed data (nil on failure)
	cacheMu    sync.Mutex
	group      singleflight.Group
	log        *logrus.Entry
}

// NewTxtHandler creates a TxtHandler
func NewTxtHandler(dispatcher Dispatcher, log *logrus.Entry) *TxtHandler {
	return &TxtHandler{
		dispatcher: dispatcher,
		cache:      make(map[string]*robotstxt.RobotsData),
		log:        log,
	}
}

// Get returns robots.txt data for target's host, fetching it on first use.
// Returns nil when the file is missing, unreadable or unparsable, which
// callers treat as allow-all.
func (h *TxtHandler) Get(ctx context.Context, target *url.URL, creds models.Credentials) *robotstxt.RobotsData {
	if target == nil || target.Host == "" {
		return nil
	}
	key := target.Scheme + "://" + target.Host

	h.cacheMu.Lock()
	data, found := h.cache[key]
	h.cacheMu.Unlock()
	if found {
		return data
	}

	v, _, _ := h.group.Do(key, func() (any, error) {
		data := h.fetch(ctx, target, creds)
		h.cacheMu.Lock()
		h.cache[key] = data
		h.cacheMu.Unlock()
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (h *TxtHandler) fetch(ctx context.Context, target *url.URL, creds models.Credentials) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	robotsLog := h.log.WithField("robots_url", robotsURL.String())
	robotsLog.Info("Fetching robots.txt...")

	result, err := h.dispatcher.Dispatch(ctx, robotsURL, creds, http.MethodGet, fetch.Initial)
	if err != nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	if result.Stream == nil {
		return nil
	}
	defer result.Stream.Close()

	status := result.Response.StatusCode
	if status < 200 || status >= 300 {
		robotsLog.WithField("status_code", status).Debug("No usable robots.txt")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(result.Stream, maxTxtSize))
	if err != nil {
		robotsLog.Warnf("Error reading robots.txt body: %v", err)
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}

	robotsLog.Debug("Successfully fetched and parsed robots.txt")
	return data
}

// Len returns the number of cached hosts
func (h *TxtHandler) Len() int {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	return len(h.cache)
}
