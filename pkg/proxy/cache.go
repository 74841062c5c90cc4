// Package proxy resolves and memoizes tunneling transports per
// (proxy URL, target scheme) pair.
package proxy

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
)

// Key identifies one cache entry
type Key struct {
	ProxyURL     string // Raw proxy URL as returned by discovery
	TargetScheme string
}

func (k Key) String() string {
	return k.TargetScheme + "|" + k.ProxyURL
}

// EntryState distinguishes "never looked up" from "looked up, no proxy"
type EntryState int

const (
	Unresolved EntryState = iota // Not looked up yet
	NoProxy                      // Looked up; proxy URL unusable, fetch directly
	Resolved                     // Agent constructed
)

func (s EntryState) String() string {
	switch s {
	case NoProxy:
		return "no_proxy"
	case Resolved:
		return "resolved"
	default:
		return "unresolved"
	}
}

// Entry is the cached outcome for a Key
type Entry struct {
	State EntryState
	Agent *Agent // Non-nil only when State == Resolved
}

// AgentCache memoizes agents for the lifetime of the process. There is no
// eviction; the key space is bounded by the distinct proxies configured.
type AgentCache struct {
	discover  DiscoverFunc
	userAgent string
	base      *http.Transport

	mu      sync.RWMutex
	entries map[Key]Entry
	group   singleflight.Group

	log *logrus.Entry
}

// Option configures an AgentCache
type Option func(*AgentCache)

// WithBaseTransport makes agents start from a clone of base (TLS settings,
// timeouts, pools) instead of http.DefaultTransport.
func WithBaseTransport(base *http.Transport) Option {
	return func(c *AgentCache) {
		c.base = base
	}
}

// NewAgentCache creates a cache using discover to find proxies. A nil discover
// disables proxying.
func NewAgentCache(discover DiscoverFunc, userAgent string, log *logrus.Entry, opts ...Option) *AgentCache {
	if discover == nil {
		discover = None()
	}
	c := &AgentCache{
		discover:  discover,
		userAgent: userAgent,
		entries:   make(map[Key]Entry),
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AgentFor returns the agent to use for target, or nil to fetch directly.
// Construction errors are returned and not cached.
func (c *AgentCache) AgentFor(target *url.URL) (*Agent, error) {
	if target == nil {
		return nil, nil
	}
	rawProxy := c.discover(target)
	if rawProxy == "" {
		return nil, nil
	}

	key := Key{ProxyURL: rawProxy, TargetScheme: target.Scheme}
	if entry := c.Lookup(key); entry.State != Unresolved {
		return entry.Agent, nil
	}

	// Concurrent first lookups for one key build a single agent
	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if entry := c.Lookup(key); entry.State != Unresolved {
			return entry, nil
		}
		entry, err := c.build(key)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Entry).Agent, nil
}

func (c *AgentCache) build(key Key) (Entry, error) {
	proxyLog := c.log.WithFields(logrus.Fields{"target_scheme": key.TargetScheme})

	proxyURL, err := url.Parse(key.ProxyURL)
	if err != nil || proxyURL.Scheme == "" || proxyURL.Host == "" {
		proxyLog.Warn("Unparsable proxy URL, fetching without proxy")
		return Entry{State: NoProxy}, nil
	}

	agent, err := newAgent(proxyURL, key.TargetScheme, c.userAgent, c.base)
	if err != nil {
		proxyLog.WithField("proxy", auth.Redact(proxyURL)).Errorf("Building proxy agent failed: %v", err)
		return Entry{}, err
	}
	proxyLog.WithFields(logrus.Fields{"proxy": auth.Redact(proxyURL), "agent": agent.Name}).Debug("Created proxy agent")
	return Entry{State: Resolved, Agent: agent}, nil
}

// Lookup returns the cached entry for key, Unresolved if none
func (c *AgentCache) Lookup(key Key) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// Len returns the number of cached entries
func (c *AgentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
