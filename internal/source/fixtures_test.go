package source

import (
	"fmt"
	"strings"
)

func indexPage(base string, last int, links ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="search-results">`)
	for _, l := range links {
		fmt.Fprintf(&b, `<div class="result"><h3 class="event-title"><a href="%s" title="%s">Event %s</a></h3></div>`, l, l, l)
	}
	b.WriteString(`</div><nav class="pagination">`)
	if last > 0 {
		fmt.Fprintf(&b, `<li class="bpn-last-page-link"><a href="%s%d/?frm=events" title="Navigate to last page">&raquo;</a></li>`, base, last)
	}
	b.WriteString(`</nav></body></html>`)
	return b.String()
}

func detailPage(title, header, venue string, tags ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	if title != "" {
		fmt.Fprintf(&b, `<h1 class="page-title" itemprop="headline">%s</h1>`, title)
	}
	if header != "" {
		fmt.Fprintf(&b, `<div class="event-meta"><h4><span>%s</span> | <span>%s</span></h4></div>`, header, venue)
	}
	b.WriteString(`<div class="tags">`)
	for _, t := range tags {
		fmt.Fprintf(&b, `<a href="https://visitseattle.org/events/?frm=%s" class="button big medium black category">%s</a>`, t, t)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}
