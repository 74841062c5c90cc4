package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

// Cache backends accepted by cache_backend
const (
	CacheBackendMemory = "memory"
	CacheBackendBadger = "badger"
)

var defaultExcludedSchemes = []string{"data", "geo", "javascript", "mailto", "sms", "tel"}

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.UserAgent == "" {
		warnings = append(warnings, fmt.Sprintf("user_agent is empty, defaulting to '%s'", DefaultUserAgent))
		c.UserAgent = DefaultUserAgent
	}

	// RateLimit
	if c.RateLimit < 0 {
		warnings = append(warnings, "rate_limit cannot be negative, disabling rate limit")
		c.RateLimit = 0
	}

	// MaxSocketsPerHost
	if c.MaxSocketsPerHost <= 0 {
		c.MaxSocketsPerHost = 1
	}

	// ExcludedSchemes
	if c.ExcludedSchemes == nil {
		c.ExcludedSchemes = append([]string(nil), defaultExcludedSchemes...)
	}
	for i, scheme := range c.ExcludedSchemes {
		c.ExcludedSchemes[i] = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(scheme)), ":")
	}

	// Internal + external exclusion leaves nothing to report
	if c.ExcludeExternalLinks && c.ExcludeInternalLinks {
		warnings = append(warnings, "exclude_external_links and exclude_internal_links are both set; every link will be junk")
	}

	// ExcludedPatterns (fatal on invalid regex)
	if _, err := utils.CompileRegexPatterns(c.ExcludedPatterns); err != nil {
		return warnings, err
	}

	// CacheBackend
	switch strings.ToLower(c.CacheBackend) {
	case "":
		c.CacheBackend = CacheBackendMemory
	case CacheBackendMemory, CacheBackendBadger:
		c.CacheBackend = strings.ToLower(c.CacheBackend)
	default:
		return warnings, fmt.Errorf("%w: unknown cache_backend '%s' (want '%s' or '%s')",
			utils.ErrConfigValidation, c.CacheBackend, CacheBackendMemory, CacheBackendBadger)
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 60 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}
