package source

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

var (
	lastPageRe = regexp.MustCompile(`bpn-last-page-link"><a href="[^"]*?/page/(\d+)/?[^"]*" title="Navigate to last page">`)
	linkRe     = regexp.MustCompile(`<h3 class="event-title"><a href="([^"]+?)" title="[^"]*?">.+?</a></h3>`)
	titleRe    = regexp.MustCompile(`(?s)<h1 class="page-title" itemprop="headline">(.+?)</h1>`)
	headerRe   = regexp.MustCompile(`<h4><span>(.*?)</span> \| <span>(.+?)</span></h4>`)
	dateRe     = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	timeRe     = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*([AaPp][Mm])?`)
	tagRe      = regexp.MustCompile(`<a href="[^"]*?" class="button big medium black category">(.+?)</a>`)
)

var textPolicy = bluemonday.StrictPolicy()

// ParseLastPage returns the page number behind the "last page" link on
// index page 1.
func ParseLastPage(page string) (int, error) {
	m := lastPageRe.FindStringSubmatch(page)
	if m == nil {
		return 0, domain.ErrPageCountNotFound
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: bad page number %q", domain.ErrPageCountNotFound, m[1])
	}
	return n, nil
}

// ParseLinks returns the detail page URLs on an index page in document
// order. Relative hrefs are resolved against base.
func ParseLinks(page string, base *url.URL) []string {
	matches := linkRe.FindAllStringSubmatch(page, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		href := html.UnescapeString(m[1])
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		links = append(links, href)
	}
	return links
}

// ParseDetail extracts the event fields from a detail page. The date is read
// as M/D/YYYY in loc at midnight, or at the given minute when the header also
// carries an H:MM time. Category and location come from the tag buttons by
// position (domain.TagIndexCategory, domain.TagIndexLocation).
func ParseDetail(page string, loc *time.Location) (domain.EventRecord, error) {
	var rec domain.EventRecord

	m := titleRe.FindStringSubmatch(page)
	if m == nil {
		return rec, domain.MissingField("title")
	}
	rec.Title = cleanText(m[1])
	if rec.Title == "" {
		return rec, domain.MissingField("title")
	}

	h := headerRe.FindStringSubmatch(page)
	if h == nil {
		return rec, domain.MissingField("date")
	}
	date, err := parseDate(h[1], loc)
	if err != nil {
		return rec, err
	}
	rec.EventDate = date
	rec.Venue = cleanText(h[2])

	tags := tagRe.FindAllStringSubmatch(page, -1)
	if len(tags) <= domain.TagIndexCategory {
		return rec, domain.MissingField("category")
	}
	if len(tags) <= domain.TagIndexLocation {
		return rec, domain.MissingField("location")
	}
	rec.Category = cleanText(tags[domain.TagIndexCategory][1])
	rec.Location = cleanText(tags[domain.TagIndexLocation][1])
	return rec, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	d := dateRe.FindStringSubmatchIndex(s)
	if d == nil {
		return time.Time{}, domain.MissingField("date")
	}
	day, err := time.ParseInLocation("1/2/2006", s[d[0]:d[1]], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %w", domain.ErrFieldMissing, s[d[0]:d[1]], err)
	}

	// The time token may sit before or after the date in the same span.
	rest := s[:d[0]] + " " + s[d[1]:]
	t := timeRe.FindStringSubmatch(rest)
	if t == nil {
		return day, nil
	}
	hour, _ := strconv.Atoi(t[1])
	minute, _ := strconv.Atoi(t[2])
	switch strings.ToLower(t[3]) {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return day, nil
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

// cleanText strips markup, decodes entities and trims whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}
