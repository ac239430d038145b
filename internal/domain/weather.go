package domain

import (
	"context"
	"fmt"
)

// EnrichWithWeather attaches the forecast for the record's coordinates.
// Records without coordinates are rejected so weather never exists without
// a location. On failure the record is returned unchanged.
func EnrichWithWeather(ctx context.Context, rec EventRecord, provider WeatherProvider) (EventRecord, error) {
	at, ok := rec.Coordinates()
	if !ok {
		return rec, fmt.Errorf("%w: record has no coordinates", ErrWeatherUnavailable)
	}

	f, err := provider.Forecast(ctx, at)
	if err != nil {
		return rec, err
	}

	cond := f.Condition
	tmin, tmax, chill := f.TemperatureMin, f.TemperatureMax, f.WindChill
	rec.WeatherCondition = &cond
	rec.TemperatureMin = &tmin
	rec.TemperatureMax = &tmax
	rec.WindChill = &chill
	return rec, nil
}

// ClearWeather drops every weather field, used when a record is kept after a
// weather failure.
func ClearWeather(rec EventRecord) EventRecord {
	rec.WeatherCondition = nil
	rec.TemperatureMin = nil
	rec.TemperatureMax = nil
	rec.WindChill = nil
	return rec
}
