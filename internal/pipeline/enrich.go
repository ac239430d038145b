package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/city-events-etl/internal/domain"
	"github.com/couchcryptid/city-events-etl/internal/observability"
)

// Enricher runs geocoding then weather for one record. Weather depends on the
// coordinates, so the order is fixed.
type Enricher struct {
	geocoder domain.Geocoder
	weather  domain.WeatherProvider
	region   string
	policy   domain.WeatherPolicy
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. region qualifies geocoding queries and
// policy decides whether a weather failure fails the record.
func NewEnricher(geocoder domain.Geocoder, weather domain.WeatherProvider, region string, policy domain.WeatherPolicy, metrics *observability.Metrics, logger *slog.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		weather:  weather,
		region:   region,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
	}
}

// Enrich returns the record with coordinates and weather populated. A
// non-nil error carries the failing stage as a *domain.StageError. Under
// WeatherPolicyKeep a weather failure is logged and the record is returned
// with null weather fields instead.
func (e *Enricher) Enrich(ctx context.Context, rec domain.EventRecord) (domain.EventRecord, error) {
	geo, attempt, err := domain.EnrichWithGeocoding(ctx, rec, e.geocoder, e.region)
	if err != nil {
		return rec, &domain.StageError{Stage: domain.StageGeocode, URL: rec.URL, Err: err}
	}
	e.metrics.GeocodeResolved.WithLabelValues(string(attempt)).Inc()

	out, err := domain.EnrichWithWeather(ctx, geo, e.weather)
	if err == nil {
		return out, nil
	}
	if e.policy == domain.WeatherPolicyKeep && ctx.Err() == nil {
		e.metrics.StageFailures.WithLabelValues(string(domain.StageWeather)).Inc()
		e.logger.WarnContext(ctx, "weather unavailable, keeping record without weather",
			"url", rec.URL, "location", rec.Location, "error", err)
		return domain.ClearWeather(geo), nil
	}
	return rec, &domain.StageError{Stage: domain.StageWeather, URL: rec.URL, Err: err}
}
