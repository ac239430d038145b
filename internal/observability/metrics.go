package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "events_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,error,cancelled}
	RunDuration     prometheus.Histogram
	RunInProgress   prometheus.Gauge
	LastSuccessTime prometheus.Gauge

	PagesFetched   prometheus.Counter
	LinksCollected prometheus.Counter
	LinksPlanned   prometheus.Counter
	LinksSkipped   *prometheus.CounterVec // labels: reason={done,abandoned,deferred}

	RecordsExtracted prometheus.Counter
	StageFailures    *prometheus.CounterVec // labels: stage={extract,geocode,weather}
	EventsInserted   prometheus.Counter
	EventsExisting   prometheus.Counter
	EventsPublished  prometheus.Counter
	LinksAbandoned   prometheus.Counter

	// Outbound HTTP metrics.
	HTTPRequests        *prometheus.CounterVec   // labels: service, outcome={success,retry,error}
	HTTPRequestDuration *prometheus.HistogramVec // labels: service

	// Geocoding metrics.
	GeocodeResolved *prometheus.CounterVec // labels: attempt={qualified,location,region}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete collect-enrich-persist run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		RunInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a run is executing, 0 otherwise.",
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_pages_fetched_total",
			Help:      "Index pages fetched by the link collector.",
		}),
		LinksCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_collected_total",
			Help:      "Detail page links found on index pages.",
		}),
		LinksPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_planned_total",
			Help:      "Links selected for processing after consulting the ledger.",
		}),
		LinksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_skipped_total",
			Help:      "Links skipped by the planner, by reason.",
		}, []string{"reason"}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Detail pages successfully extracted.",
		}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Record-level failures by stage.",
		}, []string{"stage"}),
		EventsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_inserted_total",
			Help:      "Events written as new rows.",
		}),
		EventsExisting: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_existing_total",
			Help:      "Events skipped because the URL was already stored.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "New events published to the event feed.",
		}),
		LinksAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_abandoned_total",
			Help:      "Links that reached the attempt limit.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outbound HTTP requests by service and outcome.",
		}, []string{"service", "outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Outbound HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"service"}),
		GeocodeResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_resolved_total",
			Help:      "Successful geocodes by the fallback step that resolved them.",
		}, []string{"attempt"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal, m.RunDuration, m.RunInProgress, m.LastSuccessTime,
		m.PagesFetched, m.LinksCollected, m.LinksPlanned, m.LinksSkipped,
		m.RecordsExtracted, m.StageFailures, m.EventsInserted, m.EventsExisting,
		m.EventsPublished, m.LinksAbandoned,
		m.HTTPRequests, m.HTTPRequestDuration,
		m.GeocodeResolved, m.GeocodeCache,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
