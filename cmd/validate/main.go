// Command validate scans the persisted events table and reports rows that
// break the record invariants: required fields, coordinate pairing, weather
// only with coordinates, and plausible coordinate ranges.
//
// Usage:
//
//	go run ./cmd/validate -database-url postgres://... [-bbox 47.3,-122.6,47.9,-122.0]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/city-events-etl/internal/adapter/postgres"
	"github.com/couchcryptid/city-events-etl/internal/domain"
)

const pageSize = 1000

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// bbox is a lat/lon rectangle; the zero value accepts any valid coordinate.
type bbox struct {
	minLat, minLon, maxLat, maxLon float64
	set                            bool
}

func parseBBox(s string) (bbox, error) {
	if s == "" {
		return bbox{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return bbox{}, fmt.Errorf("bbox wants minLat,minLon,maxLat,maxLon, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bbox{}, fmt.Errorf("bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	return bbox{minLat: v[0], minLon: v[1], maxLat: v[2], maxLon: v[3], set: true}, nil
}

func (b bbox) contains(c domain.Coordinates) bool {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return false
	}
	if !b.set {
		return true
	}
	return c.Lat >= b.minLat && c.Lat <= b.maxLat && c.Lon >= b.minLon && c.Lon <= b.maxLon
}

func main() {
	dsn := flag.String("database-url", os.Getenv("DATABASE_URL"), "postgres connection string")
	box := flag.String("bbox", "", "optional minLat,minLon,maxLat,maxLon every geocoded event must fall in")
	tz := flag.String("timezone", "America/Los_Angeles", "zone dates are reported in")
	flag.Parse()

	if *dsn == "" {
		flag.Usage()
		os.Exit(2)
	}
	b, err := parseBBox(*box)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(2)
	}
	defer pool.Close()

	events, err := loadAll(ctx, postgres.NewStore(pool, loc))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if !report(os.Stdout, validate(events, b)) {
		os.Exit(1)
	}
}

func loadAll(ctx context.Context, store *postgres.Store) ([]domain.EventRecord, error) {
	var all []domain.EventRecord
	for offset := uint64(0); ; offset += pageSize {
		page, err := store.List(ctx, postgres.Filter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func validate(events []domain.EventRecord, b bbox) []*phase {
	fields := &phase{name: "Phase 1: Record fields"}
	geo := &phase{name: "Phase 2: Coordinates"}
	weather := &phase{name: "Phase 3: Weather"}

	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if seen[e.URL] {
			fields.errorf("%s: duplicate url", e.URL)
		}
		seen[e.URL] = true

		if err := domain.ValidateRecord(e); err != nil {
			fields.errorf("%s: %v", e.URL, err)
		}
		if e.Category == "" || e.Location == "" {
			fields.errorf("%s: empty category or location", e.URL)
		}

		if c, ok := e.Coordinates(); ok && !b.contains(c) {
			geo.errorf("%s: coordinates (%.4f, %.4f) out of range", e.URL, c.Lat, c.Lon)
		}

		if e.HasWeather() {
			if !e.HasCoordinates() {
				weather.errorf("%s: weather without coordinates", e.URL)
			}
			if e.TemperatureMin != nil && e.TemperatureMax != nil && *e.TemperatureMin > *e.TemperatureMax {
				weather.errorf("%s: temperature min %.1f above max %.1f", e.URL, *e.TemperatureMin, *e.TemperatureMax)
			}
		}
	}
	return []*phase{fields, geo, weather}
}

// report prints each phase and returns true when all passed.
func report(w io.Writer, phases []*phase) bool {
	ok := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = "FAIL"
			ok = false
		}
		fmt.Fprintf(w, "%s: %s\n", p.name, status)
		for _, e := range p.errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	return ok
}
