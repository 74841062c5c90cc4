package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/link-crawler/pkg/config"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

func testCrawlConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg, _, err := loadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, warnings, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, config.CacheBackendMemory, cfg.CacheBackend)
	assert.NotEmpty(t, warnings, "empty user agent is reported")
}

func TestLoadConfig_ValidFile(t *testing.T) {
	cfgPath := writeConfig(t, `
user_agent: "test-agent/2.0"
rate_limit: 250ms
max_sockets_per_host: 2
cache_backend: badger
excluded_patterns: ["\\.pdf$"]
`)
	cfg, _, err := loadConfig(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "test-agent/2.0", cfg.UserAgent)
	assert.Equal(t, 2, cfg.MaxSocketsPerHost)
	assert.Equal(t, config.CacheBackendBadger, cfg.CacheBackend)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, _, err := loadConfig("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	_, _, err = loadConfig(writeConfig(t, "{{invalid yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")

	_, _, err = loadConfig(writeConfig(t, `excluded_patterns: ["[unclosed"]`))
	require.Error(t, err)
}

func TestDoValidate(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doValidate(writeConfig(t, `user_agent: "ok/1.0"`), &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Configuration valid.")
	assert.Empty(t, stderr.String())

	stdout.Reset()
	code = doValidate(writeConfig(t, `excluded_patterns: ["("]`), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ERROR:")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "crawl")
	assert.Contains(t, names, "validate")

	root.SetArgs([]string{"crawl"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.Error(t, root.Execute(), "crawl needs at least one URL")
}

func TestCrawlCmd_FailedPagesReturnError(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"crawl", "--loglevel", "error", server.URL + "/missing", server.URL + "/a"})
	root.SetOut(&out)
	root.SetErr(io.Discard)

	err := root.Execute()
	require.ErrorIs(t, err, errPagesFailed)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, out.String(), "PAGE\t"+server.URL+"/a\tOK", "the report is written before the error")

	root = newRootCmd()
	root.SetArgs([]string{"crawl", "--loglevel", "error", server.URL + "/a"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	assert.NoError(t, root.Execute())
}

func TestValidateCmd_InvalidConfigReturnsError(t *testing.T) {
	var stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"validate", "--config", writeConfig(t, `excluded_patterns: ["("]`)})
	root.SetOut(io.Discard)
	root.SetErr(&stderr)

	assert.ErrorIs(t, root.Execute(), errConfigInvalid)
	assert.Contains(t, stderr.String(), "ERROR:")
}

func TestRunCrawl_SitemapSeeds(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	var out bytes.Buffer
	opts := crawlOptions{URLs: []string{server.URL + "/"}, Sitemaps: []string{server.URL + "/sitemap.xml"}}
	summary, err := runCrawl(context.Background(), testCrawlConfig(t), opts, &out, quietLogger())
	require.NoError(t, err)

	// The sitemap lists / again, which is not crawled twice
	assert.Equal(t, 2, summary.Pages)
	assert.Contains(t, out.String(), "PAGE\t"+server.URL+"/b\tOK")
}

func newSiteServer() *httptest.Server {
	pages := map[string]string{
		"/":  `<a href="/a">a</a><a href="/b">b</a><a href="mailto:me@example.com">mail</a>`,
		"/a": `<a href="/">home</a><a href="/b">b</a>`,
		"/b": `<a href="http://external.invalid/x">ext</a><img src="/logo.png">`,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, "<urlset><url><loc>http://%s/</loc></url><url><loc>http://%s/b</loc></url></urlset>", r.Host, r.Host)
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, body)
	}))
}

func countPrefix(out, prefix string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestRunCrawl_SinglePage(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	var out bytes.Buffer
	summary, err := runCrawl(context.Background(), testCrawlConfig(t), crawlOptions{URLs: []string{server.URL + "/"}}, &out, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, crawlSummary{Pages: 1, Links: 2, Junk: 1}, summary)
	assert.Contains(t, out.String(), "PAGE\t"+server.URL+"/\tOK")
	assert.Contains(t, out.String(), "LINK\t"+server.URL+"/a\t"+server.URL+"/")
	assert.Contains(t, out.String(), "JUNK\tmailto:me@example.com\t"+server.URL+"/\tscheme")
}

func TestRunCrawl_RecursiveVisitsEachPageOnce(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	var out bytes.Buffer
	opts := crawlOptions{URLs: []string{server.URL + "/"}, Recursive: true}
	summary, err := runCrawl(context.Background(), testCrawlConfig(t), opts, &out, quietLogger())
	require.NoError(t, err)

	// /, /a and /b; the image is not an anchor and the external link is not followed
	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 0, summary.FailedPages)
	assert.Equal(t, 6, summary.Links)
	assert.Equal(t, 3, countPrefix(out.String(), "PAGE\t"))
}

func TestRunCrawl_BadgerCacheBackend(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	cfg := testCrawlConfig(t)
	cfg.CacheBackend = config.CacheBackendBadger
	cfg.DisableProxy = true

	opts := crawlOptions{URLs: []string{server.URL + "/", server.URL + "/a"}, CacheDir: t.TempDir()}
	summary, err := runCrawl(context.Background(), cfg, opts, io.Discard, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 4, summary.Links)
}

func TestRunCrawl_FailedPagesCounted(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	var out bytes.Buffer
	opts := crawlOptions{URLs: []string{server.URL + "/missing", server.URL + "/a"}}
	summary, err := runCrawl(context.Background(), testCrawlConfig(t), opts, &out, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 1, summary.FailedPages)
	assert.Contains(t, out.String(), "PAGE\t"+server.URL+"/missing\tFAIL")
}

func TestRunCrawl_CredentialsNotPrinted(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	seed := strings.Replace(server.URL, "http://", "http://user:secret@", 1) + "/"
	var out bytes.Buffer
	_, err := runCrawl(context.Background(), testCrawlConfig(t), crawlOptions{URLs: []string{seed}}, &out, quietLogger())
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "secret")
}

func TestRunCrawl_NoValidURLs(t *testing.T) {
	_, err := runCrawl(context.Background(), testCrawlConfig(t), crawlOptions{URLs: []string{"not a url", "/relative"}}, io.Discard, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid URLs")
}

func TestRunCrawl_CancelledContext(t *testing.T) {
	server := newSiteServer()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runCrawl(ctx, testCrawlConfig(t), crawlOptions{URLs: []string{server.URL + "/"}}, io.Discard, quietLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
