// Package nws implements domain.WeatherProvider on top of the National
// Weather Service API (api.weather.gov).
package nws

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// Getter is the HTTP surface the client needs; *web.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// Client resolves a grid point and reads its forecast and grid data.
type Client struct {
	http    Getter
	baseURL string
}

// NewClient creates an NWS client rooted at baseURL.
func NewClient(http Getter, baseURL string) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

// Forecast returns the nearest-period condition plus the first minimum
// temperature, maximum temperature and wind chill values for a coordinate.
// Every failure wraps domain.ErrWeatherUnavailable.
func (c *Client) Forecast(ctx context.Context, at domain.Coordinates) (domain.Forecast, error) {
	var pt pointsResponse
	if err := c.http.GetJSON(ctx, fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, at.Lat, at.Lon), &pt); err != nil {
		return domain.Forecast{}, unavailable("grid point", err)
	}
	if pt.Properties.Forecast == "" {
		return domain.Forecast{}, unavailable("grid point", missing("properties.forecast"))
	}
	if pt.Properties.ForecastGridData == "" {
		return domain.Forecast{}, unavailable("grid point", missing("properties.forecastGridData"))
	}

	var fc forecastResponse
	if err := c.http.GetJSON(ctx, pt.Properties.Forecast, &fc); err != nil {
		return domain.Forecast{}, unavailable("forecast", err)
	}
	if len(fc.Properties.Periods) == 0 {
		return domain.Forecast{}, unavailable("forecast", missing("properties.periods"))
	}

	var grid gridResponse
	if err := c.http.GetJSON(ctx, pt.Properties.ForecastGridData, &grid); err != nil {
		return domain.Forecast{}, unavailable("grid data", err)
	}

	out := domain.Forecast{Condition: fc.Properties.Periods[0].ShortForecast}
	for _, f := range []struct {
		name   string
		series series
		dst    *float64
	}{
		{"minTemperature", grid.Properties.MinTemperature, &out.TemperatureMin},
		{"maxTemperature", grid.Properties.MaxTemperature, &out.TemperatureMax},
		{"windChill", grid.Properties.WindChill, &out.WindChill},
	} {
		v, ok := f.series.first()
		if !ok {
			return domain.Forecast{}, unavailable("grid data", missing("properties."+f.name))
		}
		*f.dst = v
	}
	return out, nil
}

func unavailable(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrWeatherUnavailable, step, err)
}

func missing(key string) error {
	return fmt.Errorf("missing %s", key)
}

// NWS API response types.

type pointsResponse struct {
	Properties struct {
		Forecast         string `json:"forecast"`
		ForecastGridData string `json:"forecastGridData"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Name          string `json:"name"`
			ShortForecast string `json:"shortForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

type gridResponse struct {
	Properties struct {
		MinTemperature series `json:"minTemperature"`
		MaxTemperature series `json:"maxTemperature"`
		WindChill      series `json:"windChill"`
	} `json:"properties"`
}

type series struct {
	UOM    string `json:"uom"`
	Values []struct {
		ValidTime string   `json:"validTime"`
		Value     *float64 `json:"value"`
	} `json:"values"`
}

// first returns the nearest upcoming value of the series.
func (s series) first() (float64, bool) {
	if len(s.Values) == 0 || s.Values[0].Value == nil {
		return 0, false
	}
	return *s.Values[0].Value, true
}
