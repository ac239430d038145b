package domain

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWeather struct {
	forecast Forecast
	err      error
	calls    int
}

func (s *stubWeather) Forecast(_ context.Context, _ Coordinates) (Forecast, error) {
	s.calls++
	return s.forecast, s.err
}

func ptr[T any](v T) *T { return &v }

func TestEnrichWithWeather_SetsFields(t *testing.T) {
	w := &stubWeather{forecast: Forecast{Condition: "Mostly Sunny", TemperatureMin: 8.3, TemperatureMax: 17.2, WindChill: 6.1}}
	rec := EventRecord{URL: "https://x/1", Title: "Fest", Latitude: ptr(47.6), Longitude: ptr(-122.3)}

	got, err := EnrichWithWeather(context.Background(), rec, w)
	require.NoError(t, err)
	require.NotNil(t, got.WeatherCondition)
	assert.Equal(t, "Mostly Sunny", *got.WeatherCondition)
	assert.InDelta(t, 8.3, *got.TemperatureMin, 1e-9)
	assert.InDelta(t, 17.2, *got.TemperatureMax, 1e-9)
	assert.InDelta(t, 6.1, *got.WindChill, 1e-9)
}

func TestEnrichWithWeather_RequiresCoordinates(t *testing.T) {
	w := &stubWeather{}
	rec := EventRecord{URL: "https://x/1", Title: "Fest"}

	got, err := EnrichWithWeather(context.Background(), rec, w)
	require.ErrorIs(t, err, ErrWeatherUnavailable)
	assert.Equal(t, 0, w.calls)
	assert.False(t, got.HasWeather())
}

func TestEnrichWithWeather_ProviderFailure(t *testing.T) {
	w := &stubWeather{err: fmt.Errorf("%w: point outside coverage", ErrWeatherUnavailable)}
	rec := EventRecord{URL: "https://x/1", Title: "Fest", Latitude: ptr(51.5), Longitude: ptr(-0.12)}

	got, err := EnrichWithWeather(context.Background(), rec, w)
	require.ErrorIs(t, err, ErrWeatherUnavailable)
	assert.Equal(t, rec, got)
}

func TestClearWeather(t *testing.T) {
	rec := EventRecord{WeatherCondition: ptr("Rain"), TemperatureMin: ptr(1.0), TemperatureMax: ptr(2.0), WindChill: ptr(0.5)}
	assert.False(t, ClearWeather(rec).HasWeather())
}
