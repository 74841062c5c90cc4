package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/proxy"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

// AgentSource supplies the proxy agent for a target URL, nil for a direct fetch
type AgentSource interface {
	AgentFor(target *url.URL) (*proxy.Agent, error)
}

// Attempt marks whether a dispatch is the original request or its single retry
type Attempt int

const (
	Initial Attempt = iota
	Retried
)

func (a Attempt) String() string {
	if a == Retried {
		return "retried"
	}
	return "initial"
}

// Options controls request behaviour
type Options struct {
	UserAgent    string
	Retry405Head bool // Re-send a HEAD answered with 405 as a GET, once
}

// Result is a normalized response plus, for an initial GET, the live body.
// The caller must close Stream when it is non-nil.
type Result struct {
	Response *models.ResponseSummary
	Stream   io.ReadCloser
}

// Dispatcher performs single logical HTTP requests
type Dispatcher struct {
	client *http.Client
	opts   Options
	log    *logrus.Entry
}

// NewDispatcher creates a Dispatcher. agents may be nil to disable proxying.
// client is not modified; proxying uses a copy.
func NewDispatcher(client *http.Client, agents AgentSource, opts Options, log *logrus.Entry) *Dispatcher {
	if agents != nil {
		direct := client.Transport
		if direct == nil {
			direct = http.DefaultTransport
		}
		proxied := *client
		proxied.Transport = &agentTransport{agents: agents, direct: direct}
		client = &proxied
	}
	return &Dispatcher{
		client: client,
		opts:   opts,
		log:    log,
	}
}

// agentTransport picks the proxy agent for each request it sends, so every
// redirect hop is routed by its own URL
type agentTransport struct {
	agents AgentSource
	direct http.RoundTripper
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	agent, err := t.agents.AgentFor(req.URL)
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	if agent != nil {
		return agent.Transport.RoundTrip(req)
	}
	return t.direct.RoundTrip(req)
}

// Dispatch requests u with method (GET or HEAD).
// Credentials embedded in u take precedence over creds and are never sent as
// part of the request URL.
func (d *Dispatcher) Dispatch(ctx context.Context, u *url.URL, creds models.Credentials, method string, attempt Attempt) (*Result, error) {
	if err := validateURL(u); err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)
	reqLog := d.log.WithField("url", auth.Redact(u))

	for {
		resp, err := d.do(ctx, u, creds, method)
		if err != nil {
			reqLog.WithFields(logrus.Fields{"method": method, "attempt": attempt}).Debugf("Request failed: %v", err)
			return nil, err
		}
		reqLog.WithFields(logrus.Fields{"method": method, "attempt": attempt, "status_code": resp.StatusCode}).Debug("Response received")

		if resp.StatusCode == http.StatusMethodNotAllowed && method == http.MethodHead && d.opts.Retry405Head && attempt == Initial {
			// Possibly broken server; ask again with GET
			discard(resp)
			method, attempt = http.MethodGet, Retried
			continue
		}

		summary := summarize(resp)
		if method == http.MethodGet && attempt == Initial {
			return &Result{Response: summary, Stream: resp.Body}, nil
		}
		discard(resp)
		return &Result{Response: summary}, nil
	}
}

func (d *Dispatcher) do(ctx context.Context, u *url.URL, creds models.Credentials, method string) (*http.Response, error) {
	wire := auth.Clone(u)
	wire.User = nil

	req, err := http.NewRequestWithContext(ctx, method, wire.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if d.opts.UserAgent != "" {
		req.Header.Set("User-Agent", d.opts.UserAgent)
	}
	if username, password, ok := auth.BasicAuth(u, creds); ok {
		req.SetBasicAuth(username, password)
	}

	return d.client.Do(req)
}

func validateURL(u *url.URL) error {
	if u == nil {
		return utils.ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", utils.ErrInvalidURL, auth.Redact(u))
	}
	return nil
}

// summarize captures the final response and every redirect hop before it, oldest first
func summarize(resp *http.Response) *models.ResponseSummary {
	summary := &models.ResponseSummary{
		Headers:    resp.Header,
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		URL:        auth.Clone(resp.Request.URL),
	}

	var hops []models.Hop
	for prev := resp.Request.Response; prev != nil && prev.Request != nil; prev = prev.Request.Response {
		hops = append(hops, models.Hop{
			Headers:    prev.Header,
			StatusCode: prev.StatusCode,
			StatusText: statusText(prev),
			URL:        auth.Clone(prev.Request.URL),
		})
	}
	slices.Reverse(hops)
	summary.Redirects = hops
	return summary
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

// discard drains and closes the body so the connection can be reused
func discard(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
