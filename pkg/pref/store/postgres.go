package store

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the subset of *pgxpool.Pool (or *pgx.Conn) used by Postgres.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores preferences in a table with schema:
//
//	CREATE TABLE datatable_preferences (
//	    key TEXT PRIMARY KEY,
//	    envelope JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Postgres struct {
	db    PgxConn
	table string
}

// PostgresOption configures Postgres behavior.
type PostgresOption func(*Postgres)

// WithTable sets the table name. Default: "datatable_preferences".
func WithTable(name string) PostgresOption {
	return func(p *Postgres) {
		p.table = name
	}
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(db PgxConn, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, table: "datatable_preferences"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureSchema creates the preference table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			envelope JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, pgx.Identifier{p.table}.Sanitize()))
	return err
}

// Get returns the stored envelope bytes for key.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT envelope FROM %s WHERE key = $1`, pgx.Identifier{p.table}.Sanitize()),
		key,
	).Scan(&data)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set upserts the envelope bytes for key.
func (p *Postgres) Set(ctx context.Context, key string, data []byte) error {
	_, err := p.db.Exec(ctx,
		fmt.Sprintf(`
			INSERT INTO %s (key, envelope, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (key) DO UPDATE SET
				envelope = EXCLUDED.envelope,
				updated_at = NOW()`, pgx.Identifier{p.table}.Sanitize()),
		key, data,
	)
	return err
}

// Remove deletes the row for key.
func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, pgx.Identifier{p.table}.Sanitize()),
		key,
	)
	return err
}
