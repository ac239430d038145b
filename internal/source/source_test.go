package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/city-events-etl/internal/adapter/web"
	"github.com/couchcryptid/city-events-etl/internal/domain"
	"github.com/couchcryptid/city-events-etl/internal/observability"
)

// siteServer serves canned pages by path and counts requests.
type siteServer struct {
	*httptest.Server
	pages map[string]string
	hits  atomic.Int32
}

func newSite(t *testing.T) *siteServer {
	t.Helper()
	s := &siteServer{pages: map[string]string{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		body, ok := s.pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, strings.ReplaceAll(body, "{base}", s.URL))
	}))
	t.Cleanup(s.Close)
	return s
}

func newFetcher() *web.Client {
	return web.NewClient(web.Options{
		Service:   "source",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestCollector(site *siteServer) *Collector {
	return NewCollector(newFetcher(), site.URL+"/events/page/", observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func urls(links []domain.LinkEntry) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL
	}
	return out
}

func TestCollector_TwoPages(t *testing.T) {
	site := newSite(t)
	site.pages["/events/page/1/"] = indexPage("{base}/events/page/", 2, "{base}/events/a/", "{base}/events/b/")
	site.pages["/events/page/2/"] = indexPage("{base}/events/page/", 2, "{base}/events/c/")

	links, pages, err := newTestCollector(site).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{site.URL + "/events/a/", site.URL + "/events/b/", site.URL + "/events/c/"}, urls(links))
	assert.Equal(t, []int{1, 1, 2}, []int{links[0].Page, links[1].Page, links[2].Page})
	assert.Equal(t, int32(2), site.hits.Load(), "one fetch per page")
}

func TestCollector_FetchesExactlyNPages(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		site := newSite(t)
		for p := 1; p <= n; p++ {
			site.pages["/events/page/"+strconv.Itoa(p)+"/"] = indexPage("{base}/events/page/", n, "/events/"+strconv.Itoa(p)+"/")
		}

		links, _, err := newTestCollector(site).Collect(context.Background())
		require.NoError(t, err)
		assert.Len(t, links, n)
		assert.Equal(t, int32(n), site.hits.Load())
	}
}

func TestCollector_DuplicatesKept(t *testing.T) {
	site := newSite(t)
	site.pages["/events/page/1/"] = indexPage("{base}/events/page/", 2, "/events/a/")
	site.pages["/events/page/2/"] = indexPage("{base}/events/page/", 2, "/events/a/")

	links, _, err := newTestCollector(site).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestCollector_PageCountNotFound(t *testing.T) {
	site := newSite(t)
	site.pages["/events/page/1/"] = indexPage("{base}/events/page/", 0, "/events/a/")

	links, _, err := newTestCollector(site).Collect(context.Background())
	require.ErrorIs(t, err, domain.ErrPageCountNotFound)
	assert.Nil(t, links)
}

func TestCollector_PageFetchFailure(t *testing.T) {
	site := newSite(t)
	site.pages["/events/page/1/"] = indexPage("{base}/events/page/", 3, "/events/a/")
	site.pages["/events/page/3/"] = indexPage("{base}/events/page/", 3, "/events/c/")

	links, _, err := newTestCollector(site).Collect(context.Background())
	var pfe *domain.PageFetchError
	require.True(t, errors.As(err, &pfe))
	assert.Equal(t, 2, pfe.Page)
	assert.Nil(t, links)
	assert.Equal(t, int32(2), site.hits.Load(), "stops at the failed page")
}

func TestExtractor_Extract(t *testing.T) {
	site := newSite(t)
	site.pages["/events/a/"] = detailPage("Fremont Sunday Market", "5/5/2024", "Fremont", "Shopping", "Fremont")
	site.pages["/events/b/"] = detailPage("No Date Here", "", "Somewhere", "Arts", "Capitol Hill")
	loc, _ := time.LoadLocation("America/Los_Angeles")
	ex := NewExtractor(newFetcher(), loc)

	rec, err := ex.Extract(context.Background(), domain.LinkEntry{URL: site.URL + "/events/a/"})
	require.NoError(t, err)
	assert.Equal(t, site.URL+"/events/a/", rec.URL)
	assert.Equal(t, "Fremont Sunday Market", rec.Title)
	require.NoError(t, domain.ValidateRecord(rec))

	_, err = ex.Extract(context.Background(), domain.LinkEntry{URL: site.URL + "/events/b/"})
	require.ErrorIs(t, err, domain.ErrFieldMissing)

	_, err = ex.Extract(context.Background(), domain.LinkEntry{URL: site.URL + "/events/gone/"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrFieldMissing)
}
