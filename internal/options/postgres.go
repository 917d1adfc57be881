package options

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS placement_options (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectOneSQL = `SELECT value FROM placement_options WHERE name = $1`
	selectAllSQL = `SELECT name, value FROM placement_options`
	upsertSQL    = `INSERT INTO placement_options (name, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteSQL = `DELETE FROM placement_options WHERE name = $1`
)

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Options live in a single name/value table created on first use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store and ensures its table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create options table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Get retrieves a single option; unset keys yield "".
func (p *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx, selectOneSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// All retrieves every stored option.
func (p *PostgresStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, selectAllSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// Set writes all values in one transaction.
func (p *PostgresStore) Set(ctx context.Context, values map[string]string) error {
	if err := checkKeys(values); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for k, v := range values {
		if v == "" {
			_, err = tx.Exec(ctx, deleteSQL, k)
		} else {
			_, err = tx.Exec(ctx, upsertSQL, k, v)
		}
		if err != nil {
			return fmt.Errorf("write option %s: %w", k, err)
		}
	}

	return tx.Commit(ctx)
}

// Pool exposes the connection pool so other tables (the audit log) can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool { return p.pool }

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
