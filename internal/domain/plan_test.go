package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	base := time.Hour
	assert.Equal(t, time.Duration(0), RetryDelay(0, base))
	assert.Equal(t, time.Hour, RetryDelay(1, base))
	assert.Equal(t, 2*time.Hour, RetryDelay(2, base))
	assert.Equal(t, 8*time.Hour, RetryDelay(4, base))
	assert.Equal(t, 7*24*time.Hour, RetryDelay(40, base))
}

func TestPlanLinks(t *testing.T) {
	now := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	collected := []LinkEntry{
		{URL: "https://x/new", Page: 1},
		{URL: "https://x/done", Page: 1},
		{URL: "https://x/dead", Page: 1},
		{URL: "https://x/later", Page: 2},
		{URL: "https://x/ready", Page: 2},
		{URL: "https://x/new", Page: 2},
	}
	states := map[string]LinkState{
		"https://x/done":   {URL: "https://x/done", Status: LinkDone},
		"https://x/dead":   {URL: "https://x/dead", Status: LinkAbandoned, Attempts: 5},
		"https://x/later":  {URL: "https://x/later", Status: LinkPending, Attempts: 1, NextAttemptAt: now.Add(time.Hour)},
		"https://x/ready":  {URL: "https://x/ready", Status: LinkPending, Attempts: 2, NextAttemptAt: now.Add(-time.Minute)},
		"https://x/gone-b": {URL: "https://x/gone-b", Status: LinkPending, Attempts: 1},
		"https://x/gone-a": {URL: "https://x/gone-a", Status: LinkPending, Attempts: 1},
		"https://x/gone-c": {URL: "https://x/gone-c", Status: LinkDone},
	}

	p := PlanLinks(collected, states, now, true)

	assert.Equal(t, []string{
		"https://x/new",
		"https://x/ready",
		"https://x/new",
		"https://x/gone-a",
		"https://x/gone-b",
	}, urlsOf(p.Links))
	assert.Equal(t, 1, p.Done)
	assert.Equal(t, 1, p.Abandoned)
	assert.Equal(t, 1, p.Deferred)
	assert.Equal(t, 2, p.Requeued)
}

func TestPlanLinks_FullRefreshKeepsDone(t *testing.T) {
	collected := []LinkEntry{{URL: "https://x/done"}}
	states := map[string]LinkState{"https://x/done": {Status: LinkDone}}

	p := PlanLinks(collected, states, time.Now(), false)
	assert.Len(t, p.Links, 1)
	assert.Zero(t, p.Done)
}
