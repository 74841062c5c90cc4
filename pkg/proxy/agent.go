package proxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/proxy"

	"github.com/Sriram-PR/link-crawler/pkg/auth"
	"github.com/Sriram-PR/link-crawler/pkg/models"
	"github.com/Sriram-PR/link-crawler/pkg/utils"
)

// Agent is a transport that tunnels requests for one target scheme through a
// forward proxy.
type Agent struct {
	Name         string // "<target>Over<Proxy>", e.g. "httpsOverHttp"
	TargetScheme string
	ProxyScheme  string
	Host         string
	Port         string
	Header       http.Header        // Sent to the proxy on CONNECT
	ProxyAuth    models.Credentials // From the proxy URL's user-info
	Transport    *http.Transport
}

var defaultPorts = map[string]string{
	"http":    "80",
	"https":   "443",
	"socks5":  "1080",
	"socks5h": "1080",
}

// newAgent builds the agent for targetScheme through proxyURL.
// base is cloned; it is never modified.
func newAgent(proxyURL *url.URL, targetScheme, userAgent string, base *http.Transport) (*Agent, error) {
	resolved := auth.Resolve(proxyURL, nil)
	sanitized := resolved.URL

	proxyScheme := strings.ToLower(sanitized.Scheme)
	port := sanitized.Port()
	if port == "" {
		port = defaultPorts[proxyScheme]
	}

	agent := &Agent{
		Name:         targetScheme + "Over" + capitalizeFirst(proxyScheme),
		TargetScheme: targetScheme,
		ProxyScheme:  proxyScheme,
		Host:         sanitized.Hostname(),
		Port:         port,
		Header:       http.Header{},
		ProxyAuth:    resolved.Auth,
	}
	if userAgent != "" {
		agent.Header.Set("User-Agent", userAgent)
	}

	transport := cloneBase(base)
	address := net.JoinHostPort(agent.Host, agent.Port)

	switch proxyScheme {
	case "http", "https":
		// net/http adds Proxy-Authorization from the proxy URL's user-info,
		// both on CONNECT and on absolute-form requests for plain HTTP targets.
		withAuth := &url.URL{Scheme: proxyScheme, Host: address}
		if !agent.ProxyAuth.IsEmpty() {
			withAuth.User = url.UserPassword(agent.ProxyAuth.Username, agent.ProxyAuth.Password)
		}
		transport.Proxy = http.ProxyURL(withAuth)
		transport.ProxyConnectHeader = agent.Header.Clone()

	case "socks5", "socks5h":
		var socksAuth *proxy.Auth
		if !agent.ProxyAuth.IsEmpty() {
			socksAuth = &proxy.Auth{User: agent.ProxyAuth.Username, Password: agent.ProxyAuth.Password}
		}
		dialer, err := proxy.SOCKS5("tcp", address, socksAuth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", utils.ErrProxyConfig, agent.Name, err)
		}
		transport.Proxy = nil
		if contextDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = contextDialer.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}

	default:
		return nil, fmt.Errorf("%w: unsupported proxy scheme '%s' for %s", utils.ErrProxyConfig, proxyScheme, agent.Name)
	}

	agent.Transport = transport
	return agent, nil
}

func cloneBase(base *http.Transport) *http.Transport {
	if base != nil {
		return base.Clone()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return transport
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
