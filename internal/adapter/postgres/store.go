// Package postgres persists events and serves the read queries the
// dashboard runs against them.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool and pgx.Tx, so tests
// can run every query inside a transaction that is rolled back afterwards.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var eventColumns = []string{
	"url", "title", "date", "venue", "category", "location",
	"latitude", "longitude", "weather_condition",
	"temperature_min", "temperature_max", "wind_chill",
}

// Store reads and writes the events table.
type Store struct {
	db  db
	loc *time.Location
}

// NewStore creates a Store. Dates read back are converted to loc, which is
// also the zone used for month and weekday aggregates.
func NewStore(db db, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}

const upsertSQL = `
	INSERT INTO events (url, title, date, venue, category, location,
		latitude, longitude, weather_condition, temperature_min, temperature_max, wind_chill)
	VALUES (@url, @title, @date, @venue, @category, @location,
		@latitude, @longitude, @weather_condition, @temperature_min, @temperature_max, @wind_chill)
	ON CONFLICT (url) DO NOTHING`

// Upsert inserts rec unless a row with the same url exists. The first write
// wins; later writes leave the stored row untouched. Reports whether a row
// was inserted.
func (s *Store) Upsert(ctx context.Context, rec domain.EventRecord) (bool, error) {
	return upsert(ctx, s.db, rec)
}

func upsert(ctx context.Context, db db, rec domain.EventRecord) (bool, error) {
	tag, err := db.Exec(ctx, upsertSQL, pgx.NamedArgs{
		"url":               rec.URL,
		"title":             rec.Title,
		"date":              rec.EventDate,
		"venue":             rec.Venue,
		"category":          rec.Category,
		"location":          rec.Location,
		"latitude":          rec.Latitude, // nil becomes NULL
		"longitude":         rec.Longitude,
		"weather_condition": rec.WeatherCondition,
		"temperature_min":   rec.TemperatureMin,
		"temperature_max":   rec.TemperatureMax,
		"wind_chill":        rec.WindChill,
	})
	if err != nil {
		return false, fmt.Errorf("postgres.Store.Upsert %s: %w", rec.URL, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertAll writes recs in one transaction and returns the records that were
// newly inserted, in input order. On error nothing is committed.
func (s *Store) UpsertAll(ctx context.Context, recs []domain.EventRecord) ([]domain.EventRecord, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.UpsertAll: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted []domain.EventRecord
	for _, rec := range recs {
		ok, err := upsert(ctx, tx, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			inserted = append(inserted, rec)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("postgres.Store.UpsertAll: commit: %w", err)
	}
	return inserted, nil
}

// Filter narrows List. Empty strings and nil times are ignored; From is
// inclusive and To is exclusive.
type Filter struct {
	Category string
	Location string
	Weather  string
	From     *time.Time
	To       *time.Time
	Limit    uint64
	Offset   uint64
}

// List returns events matching f ordered by date, then url.
func (s *Store) List(ctx context.Context, f Filter) ([]domain.EventRecord, error) {
	q := psql.Select(eventColumns...).From("events").OrderBy("date", "url")
	where := sq.Eq{}
	if f.Category != "" {
		where["category"] = f.Category
	}
	if f.Location != "" {
		where["location"] = f.Location
	}
	if f.Weather != "" {
		where["weather_condition"] = f.Weather
	}
	if len(where) > 0 {
		q = q.Where(where)
	}
	if f.From != nil {
		q = q.Where(sq.GtOrEq{"date": *f.From})
	}
	if f.To != nil {
		q = q.Where(sq.Lt{"date": *f.To})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.List: build query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.List: %w", err)
	}
	defer rows.Close()

	var out []domain.EventRecord
	for rows.Next() {
		var r domain.EventRecord
		if err := rows.Scan(
			&r.URL, &r.Title, &r.EventDate, &r.Venue, &r.Category, &r.Location,
			&r.Latitude, &r.Longitude, &r.WeatherCondition,
			&r.TemperatureMin, &r.TemperatureMax, &r.WindChill,
		); err != nil {
			return nil, fmt.Errorf("postgres.Store.List: scan: %w", err)
		}
		r.EventDate = r.EventDate.In(s.loc)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres.Store.List: rows: %w", err)
	}
	return out, nil
}

// Count is one bucket of an aggregate.
type Count struct {
	Key    string `json:"key"`
	Events int    `json:"events"`
}

// Summary holds the aggregates the dashboard charts.
type Summary struct {
	Total      int     `json:"total"`
	ByCategory []Count `json:"by_category"`
	ByMonth    []Count `json:"by_month"`
	ByWeekday  []Count `json:"by_weekday"`
}

// Summary counts events by category, by month (YYYY-MM) and by day of week,
// using the store's zone for calendar boundaries.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&sum.Total); err != nil {
		return sum, fmt.Errorf("postgres.Store.Summary: total: %w", err)
	}

	zone := s.loc.String()
	var err error
	if sum.ByCategory, err = s.countBy(ctx, sq.Expr("coalesce(category, '')"), sq.Expr("key")); err != nil {
		return sum, err
	}
	if sum.ByMonth, err = s.countBy(ctx,
		sq.Expr("to_char(date AT TIME ZONE ?, 'YYYY-MM')", zone),
		sq.Expr("key"),
	); err != nil {
		return sum, err
	}
	if sum.ByWeekday, err = s.countBy(ctx,
		sq.Expr("trim(to_char(date AT TIME ZONE ?, 'Day'))", zone),
		sq.Expr("min(extract(isodow FROM date AT TIME ZONE ?))", zone),
	); err != nil {
		return sum, err
	}
	return sum, nil
}

// countBy groups events by key and orders the buckets by order.
func (s *Store) countBy(ctx context.Context, key, order sq.Sqlizer) ([]Count, error) {
	query, args, err := psql.
		Select().
		Column(sq.Alias(key, "key")).
		Column("count(*)").
		From("events").
		GroupBy("1").
		OrderByClause(order).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Summary: build query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres.Store.Summary: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Count, error) {
		var c Count
		err := row.Scan(&c.Key, &c.Events)
		return c, err
	})
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres.Store.Ping: %w", err)
	}
	return nil
}
