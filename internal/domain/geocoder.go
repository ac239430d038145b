package domain

import "context"

// Geocoder resolves a free-text place query to candidate coordinates.
type Geocoder interface {
	// Search returns candidates in provider order. An empty slice with a nil
	// error means "not found"; an error means the request itself failed.
	Search(ctx context.Context, query string) ([]Coordinates, error)
}

// WeatherProvider looks up the forecast for a coordinate.
type WeatherProvider interface {
	// Forecast returns an error wrapping ErrWeatherUnavailable on any failure.
	Forecast(ctx context.Context, at Coordinates) (Forecast, error)
}
