package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent when no user_agent is configured
const DefaultUserAgent = "link-crawler/0.1 (+https://github.com/Sriram-PR/link-crawler)"

// AppConfig holds the options recognized by the crawl core
type AppConfig struct {
	UserAgent            string           `yaml:"user_agent"`
	RateLimit            time.Duration    `yaml:"rate_limit,omitempty"`           // Minimum delay between successive page fetch starts
	Retry405Head         *bool            `yaml:"retry_405_head,omitempty"`       // Retry HEAD as GET on 405 (nil = default true)
	MaxSocketsPerHost    int              `yaml:"max_sockets_per_host,omitempty"` // Concurrent page fetches per host
	HonorRobotExclusions *bool            `yaml:"honor_robot_exclusions,omitempty"`
	FetchRobotsTxt       bool             `yaml:"fetch_robots_txt,omitempty"` // Attach robots.txt rules to each page's directives
	DisableProxy         bool             `yaml:"disable_proxy,omitempty"`    // Ignore HTTP_PROXY/HTTPS_PROXY/NO_PROXY
	ExcludedSchemes      []string         `yaml:"excluded_schemes,omitempty"`
	ExcludeExternalLinks bool             `yaml:"exclude_external_links,omitempty"`
	ExcludeInternalLinks bool             `yaml:"exclude_internal_links,omitempty"`
	ExcludedPatterns     []string         `yaml:"excluded_patterns,omitempty"` // Regex patterns matched against absolute link URLs
	CacheBackend         string           `yaml:"cache_backend,omitempty"`     // "memory" or "badger"
	HTTPClientSettings   HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`           // Redirect hops followed before failing
}

// ShouldRetry405Head reports the effective retry-on-405 setting
func (c *AppConfig) ShouldRetry405Head() bool {
	if c.Retry405Head != nil {
		return *c.Retry405Head
	}
	return true
}

// ShouldHonorRobotExclusions reports the effective robots setting
func (c *AppConfig) ShouldHonorRobotExclusions() bool {
	if c.HonorRobotExclusions != nil {
		return *c.HonorRobotExclusions
	}
	return true
}

// Load reads and parses a YAML config file. Validation is left to the caller.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config '%s': %w", path, err)
	}
	return &cfg, nil
}
