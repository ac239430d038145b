// Package domain models city event listings scraped from a paginated events
// site and enriched with location and weather data.
//
// # Source Conventions
//
// Index pages live at "<base>/<n>/" for n = 1..N. Page 1 carries the only
// statement of N, a "last page" navigation link:
//
//	<li class="bpn-last-page-link"><a href=".../page/12/" title="Navigate to last page">
//
// Each index page lists events as
//
//	<h3 class="event-title"><a href="<detail url>" title="...">...</a></h3>
//
// Detail pages carry a headline, a header block and two tag buttons:
//
//	<h1 class="page-title" itemprop="headline">Title &amp; More</h1>
//	<h4><span>Fri, 10/18/2024</span> | <span>Venue</span></h4>
//	<a href="..." class="button big medium black category">Music</a>
//	<a href="..." class="button big medium black category">Capitol Hill</a>
//
// The two tags are not labelled in the markup. The first is the category and
// the second is the location; see [TagIndexCategory] and [TagIndexLocation].
//
// # Dates
//
// Dates are civil "M/D/YYYY" in the source region's zone (America/Los_Angeles
// by default). A record's EventDate is midnight local time unless the header
// also carries an "H:MM" token (optionally with AM/PM), in which case the time
// is applied to the minute.
//
// # Enrichment
//
// Geocoding runs a three-step fallback (see [GeocodeQueries]); weather is only
// ever looked up once coordinates exist, so a record without coordinates never
// carries weather fields.
//
// # Identity
//
// The detail page URL is the primary key. Persistence is insert-only
// (ON CONFLICT DO NOTHING): the first stored version of an event wins.
package domain
