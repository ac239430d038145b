// Package ledger keeps per-link retry state in a local SQLite database so a
// failed link is retried on later runs with backoff, and given up on after a
// bounded number of attempts.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers "sqlite" driver

	"github.com/couchcryptid/city-events-etl/internal/adapter/ledger/migrations"
	"github.com/couchcryptid/city-events-etl/internal/domain"
)

// Ledger is the SQLite-backed link state store.
type Ledger struct {
	db          *sqlx.DB
	maxAttempts int
	backoffBase time.Duration
}

// linkRow mirrors the links table. Times are unix milliseconds.
type linkRow struct {
	URL           string `db:"url"`
	Status        string `db:"status"`
	Attempts      int    `db:"attempts"`
	LastStage     string `db:"last_stage"`
	LastError     string `db:"last_error"`
	NextAttemptAt int64  `db:"next_attempt_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func (r linkRow) state() domain.LinkState {
	return domain.LinkState{
		URL:           r.URL,
		Status:        domain.LinkStatus(r.Status),
		Attempts:      r.Attempts,
		LastStage:     r.LastStage,
		LastError:     r.LastError,
		NextAttemptAt: fromUnixMilli(r.NextAttemptAt),
		UpdatedAt:     fromUnixMilli(r.UpdatedAt),
	}
}

// Open opens (creating if needed) the ledger at path and migrates it.
func Open(ctx context.Context, path string, maxAttempts int, backoffBase time.Duration) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: create dir: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	provider, err := goose.NewProvider(goose.DialectSQLite3, db.DB, migrations.FS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}

	return &Ledger{db: db, maxAttempts: maxAttempts, backoffBase: backoffBase}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// States returns the state of every known link keyed by URL.
func (l *Ledger) States(ctx context.Context) (map[string]domain.LinkState, error) {
	query, args, err := sq.Select("url", "status", "attempts", "last_stage", "last_error", "next_attempt_at", "updated_at").
		From("links").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ledger: build query: %w", err)
	}

	var rows []linkRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("ledger: select links: %w", err)
	}
	out := make(map[string]domain.LinkState, len(rows))
	for _, r := range rows {
		out[r.URL] = r.state()
	}
	return out, nil
}

// RecordSuccess marks urls as done. Done links keep their attempt count.
func (l *Ledger) RecordSuccess(ctx context.Context, urls []string, now time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	return l.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, u := range urls {
			query, args, err := sq.Insert("links").
				Columns("url", "status", "updated_at").
				Values(u, string(domain.LinkDone), now.UnixMilli()).
				Suffix(`ON CONFLICT (url) DO UPDATE SET status = excluded.status,
					last_stage = '', last_error = '', next_attempt_at = 0, updated_at = excluded.updated_at`).
				ToSql()
			if err != nil {
				return fmt.Errorf("ledger: build upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("ledger: mark done %s: %w", u, err)
			}
		}
		return nil
	})
}

// RecordFailure counts a failed attempt for f.Link. The link is scheduled
// for retry after an exponential delay, or abandoned once it reaches the
// attempt limit. Returns the resulting state.
func (l *Ledger) RecordFailure(ctx context.Context, f domain.Failure, now time.Time) (domain.LinkState, error) {
	var st domain.LinkState
	err := l.inTx(ctx, func(tx *sqlx.Tx) error {
		var prev linkRow
		err := tx.GetContext(ctx, &prev, `SELECT url, status, attempts, last_stage, last_error, next_attempt_at, updated_at FROM links WHERE url = ?`, f.Link.URL)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ledger: read %s: %w", f.Link.URL, err)
		}

		st = domain.LinkState{
			URL:       f.Link.URL,
			Status:    domain.LinkPending,
			Attempts:  prev.Attempts + 1,
			LastStage: string(f.Stage),
			UpdatedAt: now,
		}
		if f.Err != nil {
			st.LastError = f.Err.Error()
		}
		if l.maxAttempts > 0 && st.Attempts >= l.maxAttempts {
			st.Status = domain.LinkAbandoned
		} else {
			st.NextAttemptAt = now.Add(domain.RetryDelay(st.Attempts, l.backoffBase))
		}

		query, args, err := sq.Insert("links").
			Columns("url", "status", "attempts", "last_stage", "last_error", "next_attempt_at", "updated_at").
			Values(st.URL, string(st.Status), st.Attempts, st.LastStage, st.LastError, unixMilli(st.NextAttemptAt), now.UnixMilli()).
			Suffix(`ON CONFLICT (url) DO UPDATE SET status = excluded.status, attempts = excluded.attempts,
				last_stage = excluded.last_stage, last_error = excluded.last_error,
				next_attempt_at = excluded.next_attempt_at, updated_at = excluded.updated_at`).
			ToSql()
		if err != nil {
			return fmt.Errorf("ledger: build upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("ledger: record failure %s: %w", f.Link.URL, err)
		}
		return nil
	})
	return st, err
}

func (l *Ledger) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
