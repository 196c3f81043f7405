package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/resilience"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id          INT PRIMARY KEY,
	source_url  TEXT NOT NULL,
	fetched_at  TIMESTAMPTZ
)`

// PGStore keeps the manifest in the documents table.
type PGStore struct {
	client  *postgres.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewPGStore wraps client. Lookups are bounded by timeout.
func NewPGStore(client *postgres.Client, timeout time.Duration) *PGStore {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &PGStore{
		client:  client,
		timeout: timeout,
		logger:  slog.Default().With("component", "manifest-pg"),
	}
}

// Migrate creates the documents table when absent.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Upsert inserts or updates entries in one transaction.
func (s *PGStore) Upsert(ctx context.Context, entries []Entry) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (id, source_url, fetched_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE
			SET source_url = EXCLUDED.source_url, fetched_at = EXCLUDED.fetched_at`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			var fetched any
			if !e.FetchedAt.IsZero() {
				fetched = e.FetchedAt
			}
			if _, err := stmt.ExecContext(ctx, e.Key, e.URL, fetched); err != nil {
				return fmt.Errorf("upserting document %d: %w", e.Key, err)
			}
		}
		s.logger.Info("manifest synced", "documents", len(entries))
		return nil
	})
}

// Lookup reads one row within the store's timeout.
func (s *PGStore) Lookup(ctx context.Context, key int) (Entry, bool, error) {
	var (
		e     Entry
		found bool
	)
	err := resilience.WithTimeout(ctx, s.timeout, "manifest lookup", func(ctx context.Context) error {
		var fetched sql.NullTime
		err := s.client.DB.QueryRowContext(ctx,
			`SELECT id, source_url, fetched_at FROM documents WHERE id = $1`, key,
		).Scan(&e.Key, &e.URL, &fetched)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if fetched.Valid {
			e.FetchedAt = fetched.Time
		}
		found = true
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("looking up document %d: %w", key, err)
	}
	return e, found, nil
}

// Chain tries each Lookuper in order and returns the first hit. Errors are
// logged and the next source is tried.
type Chain []Lookuper

func (c Chain) Lookup(ctx context.Context, key int) (Entry, bool, error) {
	var lastErr error
	for _, l := range c {
		if l == nil {
			continue
		}
		e, ok, err := l.Lookup(ctx, key)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return e, true, nil
		}
	}
	return Entry{}, false, lastErr
}
