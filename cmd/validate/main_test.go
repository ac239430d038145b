package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func goodEvent(url string) domain.EventRecord {
	return domain.EventRecord{
		URL:              url,
		Title:            "Night Market",
		EventDate:        time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		Category:         "Festivals",
		Location:         "Downtown",
		Latitude:         ptr(47.61),
		Longitude:        ptr(-122.34),
		WeatherCondition: ptr("Cloudy"),
		TemperatureMin:   ptr(4.0),
		TemperatureMax:   ptr(11.0),
		WindChill:        ptr(2.0),
	}
}

func TestValidate_AllPass(t *testing.T) {
	b, err := parseBBox("47.3,-122.6,47.9,-122.0")
	require.NoError(t, err)

	var out bytes.Buffer
	ok := report(&out, validate([]domain.EventRecord{goodEvent("https://x/1"), goodEvent("https://x/2")}, b))
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Phase 3: Weather: PASS")
}

func TestValidate_Violations(t *testing.T) {
	weatherNoCoords := goodEvent("https://x/weather")
	weatherNoCoords.Latitude, weatherNoCoords.Longitude = nil, nil

	faraway := goodEvent("https://x/paris")
	faraway.Latitude, faraway.Longitude = ptr(48.85), ptr(2.35)

	inverted := goodEvent("https://x/inverted")
	inverted.TemperatureMin = ptr(20.0)

	b, err := parseBBox("47.3,-122.6,47.9,-122.0")
	require.NoError(t, err)
	phases := validate([]domain.EventRecord{weatherNoCoords, faraway, inverted}, b)

	var out bytes.Buffer
	assert.False(t, report(&out, phases))
	assert.Contains(t, out.String(), "https://x/weather: weather without coordinates")
	assert.Contains(t, out.String(), "https://x/paris: coordinates (48.8500, 2.3500) out of range")
	assert.Contains(t, out.String(), "https://x/inverted: temperature min 20.0 above max 11.0")
}

func TestParseBBox(t *testing.T) {
	_, err := parseBBox("1,2,3")
	require.Error(t, err)
	_, err = parseBBox("a,b,c,d")
	require.Error(t, err)

	b, err := parseBBox("")
	require.NoError(t, err)
	assert.True(t, b.contains(domain.Coordinates{Lat: 48.85, Lon: 2.35}))
	assert.False(t, b.contains(domain.Coordinates{Lat: 91, Lon: 0}))
}
