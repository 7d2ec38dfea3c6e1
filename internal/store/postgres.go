package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps documents in microbank.documents. Each Do call is one
// database transaction that first takes a transaction-scoped advisory lock
// per document, so multi-document operations commit atomically and are
// serialized across the api and worker processes.
type Postgres struct {
	pool *pgxpool.Pool
}

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Do(ctx context.Context, names []Name, fn func(rw ReadWriter) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, n := range lockOrder(names) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(n)); err != nil {
			return fmt.Errorf("lock %s: %w", n, err)
		}
	}

	st := newStaged(names, func(ctx context.Context, name Name) ([]byte, error) {
		var body []byte
		err := tx.QueryRow(ctx, `
			SELECT body
			FROM microbank.documents
			WHERE name = $1
		`, string(name)).Scan(&body)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return body, err
	})
	if err := fn(st); err != nil {
		return err
	}

	for _, n := range st.pending() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO microbank.documents (name, body, updated_at)
			VALUES ($1, $2::jsonb, now())
			ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
		`, string(n), string(st.writes[n])); err != nil {
			return fmt.Errorf("write %s: %w", n, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
