package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"HTTP_PROXY", "http_proxy", "HTTPS_PROXY", "https_proxy", "NO_PROXY", "no_proxy", "REQUEST_METHOD"} {
		t.Setenv(name, "")
	}
}

func TestFromEnvironment(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTP_PROXY", "http://proxy.local:3128")
	t.Setenv("NO_PROXY", "skip.example.com")

	discover := FromEnvironment()

	assert.Equal(t, "http://proxy.local:3128", discover(mustParse(t, "http://example.com/")))
	assert.Equal(t, "", discover(mustParse(t, "http://skip.example.com/")))
	assert.Equal(t, "", discover(mustParse(t, "https://example.com/")), "HTTPS_PROXY unset")
	assert.Equal(t, "", discover(nil))
}

func TestFromEnvironment_SchemelessProxyReadAsHTTP(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTPS_PROXY", "proxy.local:3128")

	assert.Equal(t, "http://proxy.local:3128", FromEnvironment()(mustParse(t, "https://example.com/")))
}

func TestFromEnvironment_MalformedProxyRemembered(t *testing.T) {
	for _, raw := range []string{"http://[::1", "http://exa mple.com:80"} {
		t.Run(raw, func(t *testing.T) {
			clearProxyEnv(t)
			t.Setenv("HTTP_PROXY", raw)
			t.Setenv("NO_PROXY", "skip.example.com")

			discover := FromEnvironment()
			assert.Equal(t, raw, discover(mustParse(t, "http://example.com/")), "value passed through verbatim")
			assert.Equal(t, "", discover(mustParse(t, "http://skip.example.com/")), "NO_PROXY still honored")

			cache := NewAgentCache(discover, "ua", testLogger())
			agent, err := cache.AgentFor(mustParse(t, "http://example.com/"))
			require.NoError(t, err)
			assert.Nil(t, agent)
			assert.Equal(t, NoProxy, cache.Lookup(Key{ProxyURL: raw, TargetScheme: "http"}).State)
		})
	}
}

func TestFromEnvironment_NothingConfigured(t *testing.T) {
	clearProxyEnv(t)
	assert.Equal(t, "", FromEnvironment()(mustParse(t, "https://example.com/")))
}

func TestStaticAndNone(t *testing.T) {
	target := mustParse(t, "http://example.com/")
	assert.Equal(t, "socks5://127.0.0.1:9050", Static("socks5://127.0.0.1:9050")(target))
	assert.Equal(t, "", None()(target))
}
