// Package pipeline runs one collect, extract, enrich, reconcile and persist
// cycle over the event source, and schedules such runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/city-events-etl/internal/domain"
	"github.com/couchcryptid/city-events-etl/internal/observability"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// LinkCollector gathers detail page links from the index.
type LinkCollector interface {
	Collect(ctx context.Context) ([]domain.LinkEntry, int, error)
}

// DetailExtractor turns a link into an EventRecord.
type DetailExtractor interface {
	Extract(ctx context.Context, link domain.LinkEntry) (domain.EventRecord, error)
}

// EventStore persists records and reports which ones were new.
type EventStore interface {
	UpsertAll(ctx context.Context, recs []domain.EventRecord) ([]domain.EventRecord, error)
}

// LinkLedger tracks per-link retry state across runs.
type LinkLedger interface {
	States(ctx context.Context) (map[string]domain.LinkState, error)
	RecordSuccess(ctx context.Context, urls []string, now time.Time) error
	RecordFailure(ctx context.Context, f domain.Failure, now time.Time) (domain.LinkState, error)
}

// Publisher announces newly inserted events.
type Publisher interface {
	Publish(ctx context.Context, recs []domain.EventRecord, scrapedAt time.Time) error
}

// Options tunes a Pipeline.
type Options struct {
	Concurrency int
	RunTimeout  time.Duration
	Incremental bool
}

// Pipeline wires the stages together.
type Pipeline struct {
	collector LinkCollector
	extractor DetailExtractor
	enricher  *Enricher
	store     EventStore
	ledger    LinkLedger
	publisher Publisher // nil disables publishing
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	running   atomic.Bool
}

// New creates a Pipeline. publisher may be nil.
func New(c LinkCollector, x DetailExtractor, e *Enricher, s EventStore, l LinkLedger, pub Publisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		collector: c,
		extractor: x,
		enricher:  e,
		store:     s,
		ledger:    l,
		publisher: pub,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Running reports whether a run is executing.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run executes one full cycle. Per-record failures are counted and recorded
// in the ledger; they never fail the run. A run that is cancelled or times
// out before persistence commits nothing.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	if !p.running.CompareAndSwap(false, true) {
		return domain.RunReport{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: domain.Now(),
		Failed:    map[domain.Stage]int{},
	}
	ctx = observability.WithAttrs(ctx, slog.String("run_id", report.RunID))
	if p.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RunTimeout)
		defer cancel()
	}

	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)
	start := time.Now()
	p.logger.InfoContext(ctx, "run started", "concurrency", p.opts.Concurrency, "incremental", p.opts.Incremental)

	err := p.run(ctx, &report)
	report.Duration = time.Since(start)
	p.metrics.RunDuration.Observe(report.Duration.Seconds())

	switch {
	case err == nil:
		p.metrics.RunsTotal.WithLabelValues("success").Inc()
		p.metrics.LastSuccessTime.Set(float64(domain.Now().Unix()))
		p.ready.Store(true)
		p.logger.InfoContext(ctx, "run finished",
			"pages", report.Pages,
			"collected", report.Collected,
			"planned", report.Planned,
			"extracted", report.Extracted,
			"failed", report.Failed,
			"inserted", report.Inserted,
			"existing", report.Existing,
			"abandoned", report.Abandoned,
			"duration", report.Duration,
		)
	case ctx.Err() != nil:
		p.metrics.RunsTotal.WithLabelValues("cancelled").Inc()
		p.logger.WarnContext(ctx, "run cancelled, nothing committed", "error", err)
	default:
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		p.logger.ErrorContext(ctx, "run failed", "error", err)
	}
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *domain.RunReport) error {
	links, pages, err := p.collector.Collect(ctx)
	report.Pages = pages
	if err != nil {
		return fmt.Errorf("collect links: %w", err)
	}
	report.Collected = len(links)
	p.metrics.LinksCollected.Add(float64(len(links)))

	states, err := p.ledger.States(ctx)
	if err != nil {
		return fmt.Errorf("load link ledger: %w", err)
	}
	plan := domain.PlanLinks(links, states, domain.Now(), p.opts.Incremental)
	report.Planned = len(plan.Links)
	p.metrics.LinksPlanned.Add(float64(len(plan.Links)))
	p.metrics.LinksSkipped.WithLabelValues("done").Add(float64(plan.Done))
	p.metrics.LinksSkipped.WithLabelValues("abandoned").Add(float64(plan.Abandoned))
	p.metrics.LinksSkipped.WithLabelValues("deferred").Add(float64(plan.Deferred))
	p.logger.InfoContext(ctx, "links planned",
		"collected", len(links), "planned", len(plan.Links),
		"done", plan.Done, "abandoned", plan.Abandoned, "deferred", plan.Deferred, "requeued", plan.Requeued)

	batch, extracted, failures := p.process(ctx, plan.Links)
	if err := ctx.Err(); err != nil {
		return err
	}
	report.Extracted = extracted

	kept, _, err := domain.Reconcile(batch, failures)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, f := range failures {
		report.Failed[f.Stage]++
		p.metrics.StageFailures.WithLabelValues(string(f.Stage)).Inc()
		p.logger.WarnContext(ctx, "record failed", "url", f.Link.URL, "stage", f.Stage, "error", f.Err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	inserted, err := p.store.UpsertAll(ctx, kept.Records)
	if err != nil {
		return fmt.Errorf("persist events: %w", err)
	}
	report.Inserted = len(inserted)
	report.Existing = kept.Len() - len(inserted)
	p.metrics.EventsInserted.Add(float64(report.Inserted))
	p.metrics.EventsExisting.Add(float64(report.Existing))

	p.updateLedger(ctx, kept, failures, report)
	p.publish(ctx, inserted, report.StartedAt)
	return nil
}

// process extracts every link, then enriches every extracted record, each
// stage on a bounded worker pool. Results are written to the slot of their
// input index so the batch stays aligned with links regardless of completion
// order. Failures carry that index.
func (p *Pipeline) process(ctx context.Context, links []domain.LinkEntry) (domain.Batch, int, []domain.Failure) {
	batch := domain.Batch{
		Links:   links,
		Records: make([]domain.EventRecord, len(links)),
	}
	errs := make([]*domain.StageError, len(links))

	p.forEach(ctx, len(links), func(ctx context.Context, i int) {
		rec, err := p.extractor.Extract(ctx, links[i])
		if err != nil {
			errs[i] = &domain.StageError{Stage: domain.StageExtract, URL: links[i].URL, Err: err}
			return
		}
		batch.Records[i] = rec
		p.metrics.RecordsExtracted.Inc()
	})
	extracted := 0
	for _, se := range errs {
		if se == nil {
			extracted++
		}
	}

	p.forEach(ctx, len(links), func(ctx context.Context, i int) {
		if errs[i] != nil {
			return
		}
		rec, err := p.enricher.Enrich(ctx, batch.Records[i])
		if err != nil {
			var se *domain.StageError
			if !errors.As(err, &se) {
				se = &domain.StageError{Stage: domain.StageGeocode, URL: links[i].URL, Err: err}
			}
			errs[i] = se
			return
		}
		if err := domain.ValidateRecord(rec); err != nil {
			errs[i] = &domain.StageError{Stage: domain.StageExtract, URL: links[i].URL, Err: err}
			return
		}
		batch.Records[i] = rec
	})

	var failures []domain.Failure
	for i, se := range errs {
		if se == nil {
			continue
		}
		failures = append(failures, domain.Failure{Index: i, Link: links[i], Stage: se.Stage, Err: se.Err})
	}
	return batch, extracted, failures
}

// forEach calls fn for indexes 0..n-1 with at most Concurrency in flight.
// No new work starts once ctx is done.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			fn(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) updateLedger(ctx context.Context, kept domain.Batch, failures []domain.Failure, report *domain.RunReport) {
	now := domain.Now()
	urls := make([]string, len(kept.Links))
	for i, l := range kept.Links {
		urls[i] = l.URL
	}
	if err := p.ledger.RecordSuccess(ctx, urls, now); err != nil {
		p.logger.ErrorContext(ctx, "ledger update failed", "error", err)
	}

	for _, f := range failures {
		st, err := p.ledger.RecordFailure(ctx, f, now)
		if err != nil {
			p.logger.ErrorContext(ctx, "ledger update failed", "url", f.Link.URL, "error", err)
			continue
		}
		if st.Status == domain.LinkAbandoned {
			report.Abandoned++
			p.metrics.LinksAbandoned.Inc()
			p.logger.WarnContext(ctx, "link abandoned", "url", f.Link.URL, "attempts", st.Attempts, "stage", f.Stage)
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, inserted []domain.EventRecord, scrapedAt time.Time) {
	if p.publisher == nil || len(inserted) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, inserted, scrapedAt); err != nil {
		p.logger.ErrorContext(ctx, "publish events failed", "count", len(inserted), "error", err)
		return
	}
	p.metrics.EventsPublished.Add(float64(len(inserted)))
}
