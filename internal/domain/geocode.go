package domain

import (
	"context"
	"fmt"
	"strings"
)

// GeocodeAttempt names a step in the geocoding fallback chain.
type GeocodeAttempt string

const (
	AttemptQualified GeocodeAttempt = "qualified"
	AttemptLocation  GeocodeAttempt = "location"
	AttemptRegion    GeocodeAttempt = "region"
)

// GeocodeQuery is one query in the fallback chain.
type GeocodeQuery struct {
	Attempt GeocodeAttempt
	Text    string
}

// GeocodeQueries returns the fallback chain for a location in the order it
// must be tried:
//
//  1. "{location}, {region}" since most labels are neighborhoods or venues
//  2. "{location}" when the qualifier over-constrains the search
//  3. "{region}" to anchor the event at the city center
//
// A blank location collapses the chain to the region query alone.
func GeocodeQueries(location, region string) []GeocodeQuery {
	location = strings.TrimSpace(location)
	region = strings.TrimSpace(region)

	var qs []GeocodeQuery
	if location != "" {
		if region != "" {
			qs = append(qs, GeocodeQuery{Attempt: AttemptQualified, Text: location + ", " + region})
		}
		qs = append(qs, GeocodeQuery{Attempt: AttemptLocation, Text: location})
	}
	if region != "" {
		qs = append(qs, GeocodeQuery{Attempt: AttemptRegion, Text: region})
	}
	return qs
}

// ResolveCoordinates walks the fallback chain and stops at the first query
// with a non-empty result, returning the first candidate. A request error
// stops the chain: fallbacks exist for empty answers, not for outages.
func ResolveCoordinates(ctx context.Context, geocoder Geocoder, location, region string) (Coordinates, GeocodeAttempt, error) {
	for _, q := range GeocodeQueries(location, region) {
		if err := ctx.Err(); err != nil {
			return Coordinates{}, "", err
		}
		results, err := geocoder.Search(ctx, q.Text)
		if err != nil {
			return Coordinates{}, q.Attempt, fmt.Errorf("geocode %s query %q: %w", q.Attempt, q.Text, err)
		}
		if len(results) > 0 {
			return results[0], q.Attempt, nil
		}
	}
	return Coordinates{}, "", fmt.Errorf("%w for location %q in %q", ErrNoGeocodeResult, location, region)
}

// EnrichWithGeocoding sets the record's coordinates. Extracted fields are left
// untouched; on failure the record is returned unchanged.
func EnrichWithGeocoding(ctx context.Context, rec EventRecord, geocoder Geocoder, region string) (EventRecord, GeocodeAttempt, error) {
	coords, attempt, err := ResolveCoordinates(ctx, geocoder, rec.Location, region)
	if err != nil {
		return rec, attempt, err
	}
	lat, lon := coords.Lat, coords.Lon
	rec.Latitude = &lat
	rec.Longitude = &lon
	return rec, attempt, nil
}
