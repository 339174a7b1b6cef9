package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/segmenter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSite(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rules/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "regassist-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `<table class="inline dataplugin_table">
<tr><th>t</th><th>d</th></tr>
<tr><td><a href="/rules/bs">کارشناسی</a></td><td>1402</td></tr>
<tr><td><a href="/rules/broken">خراب</a></td><td>1401</td></tr>
<tr><td><a href="/rules/ms">ارشد</a></td><td>1400</td></tr>
</table>`)
	})
	mux.HandleFunc("/rules/bs", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<main id="writr__main">
<p>پیش‌درآمد</p>
<h2>فصل اول</h2>
<p><strong>ماده 1</strong> - متن ماده یک</p>
<p>تبصره</p>
</main>`)
	})
	mux.HandleFunc("/rules/broken", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/rules/ms", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<main id="writr__main"><h1>عنوان</h1><ul><li>بند</li></ul></main>`)
	})
	return httptest.NewServer(mux)
}

func newTestScraper(t *testing.T, srv *httptest.Server) *Scraper {
	t.Helper()
	s, err := New(Config{
		IndexURL:          srv.URL + "/rules/",
		RequestsPerSecond: 1000,
		UserAgent:         "regassist-test",
	}, segmenter.MustNew(""), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return s
}

func TestCrawl_SkipsFailingRules(t *testing.T) {
	var hits atomic.Int32
	srv := newTestSite(t, &hits)
	defer srv.Close()

	res, err := newTestScraper(t, srv).Crawl(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rules)
	assert.Equal(t, []string{srv.URL + "/rules/broken"}, res.Failed)
	assert.Equal(t, int32(4), hits.Load())

	require.Len(t, res.Chunks, 4)

	assert.Equal(t, domain.SentinelSection, res.Chunks[0].SectionTitle)
	assert.Equal(t, "پیش‌درآمد", res.Chunks[0].Content)
	assert.Equal(t, "کارشناسی", res.Chunks[0].RuleTitle)
	assert.Equal(t, srv.URL+"/rules/bs", res.Chunks[0].RuleURL)
	assert.Equal(t, "1402", res.Chunks[0].RuleDate)

	assert.Equal(t, "فصل اول", res.Chunks[1].SectionTitle)

	assert.Equal(t, "فصل اول", res.Chunks[2].ParentSection)
	assert.Equal(t, "ماده 1", res.Chunks[2].SectionTitle)
	assert.Equal(t, "ماده 1 - متن ماده یک\nتبصره", res.Chunks[2].Content)

	assert.Equal(t, "ارشد", res.Chunks[3].RuleTitle)
	assert.Equal(t, "عنوان\n- بند", res.Chunks[3].Content)
}

func TestFetchRuleIndex_ResolvesAgainstSiteRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<table class="inline dataplugin_table">
<tr><th>t</th><th>d</th></tr>
<tr><td><a href="doku.php?id=rules:bs">کارشناسی</a></td><td>1402</td></tr>
<tr><td><a href="/rules/ms">ارشد</a></td><td>1400</td></tr>
</table>`)
	}))
	defer srv.Close()

	s, err := New(Config{IndexURL: srv.URL + "/rules/", RequestsPerSecond: 1000}, segmenter.MustNew(""), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	rules, err := s.FetchRuleIndex(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, srv.URL+"/doku.php?id=rules:bs", rules[0].URL)
	assert.Equal(t, srv.URL+"/rules/ms", rules[1].URL)
}

func TestCrawl_IndexFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := New(Config{IndexURL: srv.URL, RequestsPerSecond: 1000}, segmenter.MustNew(""), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = s.Crawl(context.Background())
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestCrawl_CancelledContext(t *testing.T) {
	var hits atomic.Int32
	srv := newTestSite(t, &hits)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScraper(t, srv).Crawl(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresIndexURL(t *testing.T) {
	_, err := New(Config{}, segmenter.MustNew(""))
	assert.Error(t, err)
}
