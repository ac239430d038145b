package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

func openTestLedger(t *testing.T, maxAttempts int) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "ledger.db"), maxAttempts, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func failure(url string, stage domain.Stage) domain.Failure {
	return domain.Failure{Link: domain.LinkEntry{URL: url}, Stage: stage, Err: errors.New("boom")}
}

func TestLedger_Empty(t *testing.T) {
	l := openTestLedger(t, 3)
	states, err := l.States(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestLedger_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	l, err := Open(ctx, path, 3, time.Hour)
	require.NoError(t, err)
	require.NoError(t, l.RecordSuccess(ctx, []string{"https://x/1"}, now))
	require.NoError(t, l.Close())

	l, err = Open(ctx, path, 3, time.Hour)
	require.NoError(t, err)
	defer l.Close()
	states, err := l.States(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkDone, states["https://x/1"].Status)
}

func TestLedger_FailureBackoffThenAbandon(t *testing.T) {
	l := openTestLedger(t, 3)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	st, err := l.RecordFailure(ctx, failure("https://x/b", domain.StageExtract), now)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkPending, st.Status)
	assert.Equal(t, 1, st.Attempts)
	assert.Equal(t, now.Add(time.Hour), st.NextAttemptAt)

	st, err = l.RecordFailure(ctx, failure("https://x/b", domain.StageGeocode), now)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, now.Add(2*time.Hour), st.NextAttemptAt)

	st, err = l.RecordFailure(ctx, failure("https://x/b", domain.StageWeather), now)
	require.NoError(t, err)
	assert.Equal(t, domain.LinkAbandoned, st.Status)
	assert.Equal(t, 3, st.Attempts)

	states, err := l.States(ctx)
	require.NoError(t, err)
	got := states["https://x/b"]
	assert.Equal(t, domain.LinkAbandoned, got.Status)
	assert.Equal(t, "weather", got.LastStage)
	assert.Equal(t, "boom", got.LastError)
	assert.True(t, got.NextAttemptAt.IsZero())
	assert.True(t, got.UpdatedAt.Equal(now))
}

func TestLedger_SuccessClearsPending(t *testing.T) {
	l := openTestLedger(t, 5)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := l.RecordFailure(ctx, failure("https://x/c", domain.StageGeocode), now)
	require.NoError(t, err)
	require.NoError(t, l.RecordSuccess(ctx, []string{"https://x/c", "https://x/d"}, now.Add(2*time.Hour)))

	states, err := l.States(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	c := states["https://x/c"]
	assert.Equal(t, domain.LinkDone, c.Status)
	assert.Equal(t, 1, c.Attempts)
	assert.Empty(t, c.LastError)
	assert.True(t, c.NextAttemptAt.IsZero())
	assert.Equal(t, domain.LinkDone, states["https://x/d"].Status)
}

func TestLedger_PlanRoundTrip(t *testing.T) {
	l := openTestLedger(t, 2)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordSuccess(ctx, []string{"https://x/a"}, now))
	_, err := l.RecordFailure(ctx, failure("https://x/b", domain.StageExtract), now)
	require.NoError(t, err)
	for range 2 {
		_, err = l.RecordFailure(ctx, failure("https://x/gone", domain.StageGeocode), now)
		require.NoError(t, err)
	}

	states, err := l.States(ctx)
	require.NoError(t, err)

	collected := []domain.LinkEntry{{URL: "https://x/a"}, {URL: "https://x/b"}, {URL: "https://x/c"}}
	plan := domain.PlanLinks(collected, states, now.Add(2*time.Hour), true)
	assert.Equal(t, []domain.LinkEntry{{URL: "https://x/b"}, {URL: "https://x/c"}}, plan.Links)
	assert.Equal(t, 1, plan.Done)

	soon := domain.PlanLinks(collected, states, now.Add(time.Minute), true)
	assert.Equal(t, []domain.LinkEntry{{URL: "https://x/c"}}, soon.Links)
	assert.Equal(t, 1, soon.Deferred)
}
