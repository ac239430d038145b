// Package source scrapes the paginated event index and the per-event detail
// pages. Markup is treated as opaque text and fields are pulled out with
// regular expressions.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/city-events-etl/internal/domain"
	"github.com/couchcryptid/city-events-etl/internal/observability"
)

// Fetcher returns the body of a page; *web.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Collector walks the index pages and gathers detail page links.
type Collector struct {
	fetch   Fetcher
	baseURL string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCollector creates a Collector. Page n lives at baseURL + n + "/".
func NewCollector(fetch Fetcher, baseURL string, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	return &Collector{fetch: fetch, baseURL: baseURL, metrics: metrics, logger: logger}
}

// PageURL returns the URL of index page n.
func (c *Collector) PageURL(n int) string {
	return c.baseURL + strconv.Itoa(n) + "/"
}

// Collect fetches pages 1..N, where N is read from page 1, and returns every
// link in page order then document order. Duplicates are kept. A missing
// page count returns domain.ErrPageCountNotFound; a failed page returns a
// *domain.PageFetchError and no links.
func (c *Collector) Collect(ctx context.Context) ([]domain.LinkEntry, int, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse source base url: %w", err)
	}

	first, err := c.page(ctx, 1)
	if err != nil {
		return nil, 0, err
	}
	last, err := ParseLastPage(first)
	if err != nil {
		return nil, 1, err
	}
	c.logger.InfoContext(ctx, "index page count found", "pages", last)

	var links []domain.LinkEntry
	for n := 1; n <= last; n++ {
		body := first
		if n > 1 {
			if body, err = c.page(ctx, n); err != nil {
				return nil, n - 1, err
			}
		}
		found := ParseLinks(body, base)
		for _, u := range found {
			links = append(links, domain.LinkEntry{URL: u, Page: n})
		}
		c.logger.DebugContext(ctx, "index page parsed", "page", n, "links", len(found))
	}
	return links, last, nil
}

func (c *Collector) page(ctx context.Context, n int) (string, error) {
	body, err := c.fetch.Get(ctx, c.PageURL(n))
	if err != nil {
		return "", &domain.PageFetchError{Page: n, Err: err}
	}
	c.metrics.PagesFetched.Inc()
	return string(body), nil
}

// Extractor turns a detail page into an EventRecord.
type Extractor struct {
	fetch Fetcher
	loc   *time.Location
}

// NewExtractor creates an Extractor that interprets dates in loc.
func NewExtractor(fetch Fetcher, loc *time.Location) *Extractor {
	return &Extractor{fetch: fetch, loc: loc}
}

// Extract fetches and parses the detail page for link. Only the extracted
// fields are set; enrichment fields stay nil.
func (e *Extractor) Extract(ctx context.Context, link domain.LinkEntry) (domain.EventRecord, error) {
	body, err := e.fetch.Get(ctx, link.URL)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("fetch detail page: %w", err)
	}
	rec, err := ParseDetail(string(body), e.loc)
	if err != nil {
		return domain.EventRecord{}, err
	}
	rec.URL = link.URL
	return rec, nil
}
