package domain

import (
	"sort"
	"time"
)

// LinkStatus is the ledger state of a detail page URL.
type LinkStatus string

const (
	// LinkPending links failed at least once and will be retried.
	LinkPending LinkStatus = "pending"
	// LinkDone links were persisted (or already present in the store).
	LinkDone LinkStatus = "done"
	// LinkAbandoned links reached the attempt limit and are no longer retried.
	LinkAbandoned LinkStatus = "abandoned"
)

// maxLinkBackoff caps the per-link retry delay.
const maxLinkBackoff = 7 * 24 * time.Hour

// LinkState is the retry bookkeeping for one URL.
type LinkState struct {
	URL           string
	Status        LinkStatus
	Attempts      int
	LastStage     string
	LastError     string
	NextAttemptAt time.Time
	UpdatedAt     time.Time
}

// RetryDelay returns the wait before the next attempt after the given number
// of failed attempts: base, 2·base, 4·base, ... capped at one week.
func RetryDelay(attempts int, base time.Duration) time.Duration {
	if attempts <= 0 || base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxLinkBackoff {
			return maxLinkBackoff
		}
	}
	return d
}

// Plan is the set of links a run will process.
type Plan struct {
	Links     []LinkEntry
	Done      int // skipped because already persisted
	Abandoned int // skipped because the attempt limit was reached
	Deferred  int // skipped because their backoff has not expired
	Requeued  int // pending ledger links no longer on the index
}

// PlanLinks merges the collected links with the ledger. Collected order is
// preserved and duplicates are kept. Pending ledger links that were not
// collected this time are appended in URL order so earlier failures still get
// retried after they drop off the index.
func PlanLinks(collected []LinkEntry, states map[string]LinkState, now time.Time, incremental bool) Plan {
	var p Plan
	seen := make(map[string]struct{}, len(collected))

	admit := func(link LinkEntry) bool {
		st, ok := states[link.URL]
		if !ok {
			return true
		}
		switch st.Status {
		case LinkAbandoned:
			p.Abandoned++
			return false
		case LinkDone:
			if incremental {
				p.Done++
				return false
			}
		case LinkPending:
			if now.Before(st.NextAttemptAt) {
				p.Deferred++
				return false
			}
		}
		return true
	}

	for _, link := range collected {
		seen[link.URL] = struct{}{}
		if admit(link) {
			p.Links = append(p.Links, link)
		}
	}

	var requeue []string
	for url, st := range states {
		if _, ok := seen[url]; ok || st.Status != LinkPending {
			continue
		}
		requeue = append(requeue, url)
	}
	sort.Strings(requeue)
	for _, url := range requeue {
		if admit(LinkEntry{URL: url}) {
			p.Links = append(p.Links, LinkEntry{URL: url})
			p.Requeued++
		}
	}
	return p
}
