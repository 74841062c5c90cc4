package robots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/robotstxt"
)

func TestDirectives_EmptyAllowsAll(t *testing.T) {
	d := NewDirectives("link-crawler/1.0")
	assert.True(t, d.Is(All))
	assert.False(t, d.Is(NoFollow))
	assert.False(t, d.Is(NoIndex))
	assert.True(t, d.AllowsPath("/anything"))
}

func TestDirectives_Header(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		header    string
		noindex   bool
		nofollow  bool
		all       bool
	}{
		{"plain list", "crawler", "noindex, nofollow", true, true, false},
		{"single nofollow", "crawler", "nofollow", false, true, false},
		{"none implies both", "crawler", "none", true, true, false},
		{"case insensitive", "crawler", "NoFollow", false, true, false},
		{"scoped to other bot", "crawler", "googlebot: noindex, nofollow", false, false, true},
		{"scoped to this bot", "Googlebot/2.1", "googlebot: nofollow", false, true, false},
		{"scope switches", "crawler/1.0", "otherbot: noindex, crawler: nofollow", false, true, false},
		{"unknown directives ignored", "crawler", "max-snippet: 20, bogus", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDirectives(tt.userAgent)
			d.Header(tt.header)
			assert.Equal(t, tt.noindex, d.Is(NoIndex), "noindex")
			assert.Equal(t, tt.nofollow, d.Is(NoFollow), "nofollow")
			assert.Equal(t, tt.all, d.Is(All), "all")
		})
	}
}

func TestDirectives_UnavailableAfter(t *testing.T) {
	d := NewDirectives("crawler")
	d.Header("unavailable_after: 25 Jun 2010 15:00:00 PST")
	assert.True(t, d.Is(UnavailableAfter))
	assert.True(t, d.Is(NoIndex))
	assert.False(t, d.Is(NoFollow))

	future := NewDirectives("crawler")
	future.now = func() time.Time { return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC) }
	future.Header("unavailable_after: Friday, 25-Jun-10 15:00:00 GMT, noarchive")
	assert.False(t, future.Is(UnavailableAfter))
	assert.False(t, future.Is(NoIndex))
	assert.True(t, future.Is(NoArchive))

	future.now = func() time.Time { return time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC) }
	assert.True(t, future.Is(NoIndex))
}

func TestDirectives_Meta(t *testing.T) {
	d := NewDirectives("crawler/1.0")
	d.Meta("robots", "noindex")
	assert.True(t, d.Is(NoIndex))
	assert.False(t, d.Is(NoFollow))

	d.Meta("googlebot", "nofollow")
	assert.False(t, d.Is(NoFollow), "meta for another bot must be ignored")

	d.Meta("Crawler", "nofollow")
	assert.True(t, d.Is(NoFollow))
	assert.True(t, d.Is(None))
}

func TestDirectives_OneIs(t *testing.T) {
	d := NewDirectives("crawler")
	d.Header("nosnippet")
	assert.True(t, d.OneIs(NoFollow, NoSnippet))
	assert.False(t, d.OneIs(NoFollow, NoIndex))
	assert.False(t, d.OneIs())
}

func TestDirectives_Txt(t *testing.T) {
	data, err := robotstxt.FromString("User-agent: *\nDisallow: /private\n\nUser-agent: crawler\nDisallow: /crawler-only\n")
	require.NoError(t, err)

	d := NewDirectives("crawler/1.0")
	d.SetTxt(data)
	assert.False(t, d.AllowsPath("/crawler-only/page"))
	assert.True(t, d.AllowsPath("/private"), "specific group overrides *")
	assert.True(t, d.AllowsPath(""))

	other := NewDirectives("somebot")
	other.SetTxt(data)
	assert.False(t, other.AllowsPath("/private/x"))
	assert.True(t, other.AllowsPath("/crawler-only"))

	other.SetTxt(nil)
	assert.True(t, other.AllowsPath("/private/x"))
}
