package proxy

import (
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"
)

// DiscoverFunc returns the raw proxy URL to use for target, or "" for none
type DiscoverFunc func(target *url.URL) string

// FromEnvironment discovers proxies from HTTP_PROXY, HTTPS_PROXY and NO_PROXY
// (and their lowercase forms), read once when called.
// The configured value is returned verbatim, even when malformed, so the cache
// can remember it as unusable.
func FromEnvironment() DiscoverFunc {
	return fromConfig(httpproxy.FromEnvironment())
}

// placeholderProxy stands in for the configured proxies when asking httpproxy
// whether a target is proxied at all. httpproxy rewrites or drops values it
// cannot parse, so it never sees the real ones.
const placeholderProxy = "http://proxy.placeholder"

func fromConfig(cfg *httpproxy.Config) DiscoverFunc {
	scope := httpproxy.Config{NoProxy: cfg.NoProxy, CGI: cfg.CGI}
	if cfg.HTTPProxy != "" {
		scope.HTTPProxy = placeholderProxy
	}
	if cfg.HTTPSProxy != "" {
		scope.HTTPSProxy = placeholderProxy
	}
	applies := scope.ProxyFunc()

	return func(target *url.URL) string {
		if target == nil {
			return ""
		}
		if proxyURL, err := applies(target); err != nil || proxyURL == nil {
			return ""
		}
		if target.Scheme == "https" {
			return withScheme(cfg.HTTPSProxy)
		}
		return withScheme(cfg.HTTPProxy)
	}
}

// withScheme reads a schemeless proxy value such as "host:3128" as http
func withScheme(raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "http://" + raw
}

// Static always returns proxyURL; useful for a fixed upstream proxy
func Static(proxyURL string) DiscoverFunc {
	return func(*url.URL) string { return proxyURL }
}

// None disables proxying
func None() DiscoverFunc {
	return func(*url.URL) string { return "" }
}
