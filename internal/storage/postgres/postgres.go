// Package postgres serves attribute contributions and action definitions from
// PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/gmtools/internal/config"
)

// ApplicationName identifies engine connections in pg_stat_activity.
const ApplicationName = "gmtools"

// ErrSchemaMissing is returned by Ready when the engine tables have not been
// migrated.
var ErrSchemaMissing = errors.New("engine schema missing; run cmd/migrate first")

// engineTables are read by every resolution.
var engineTables = []string{
	"character_attributes",
	"character_items",
	"item_attributes",
	"character_conditions",
	"condition_attributes",
	"actions",
}

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Pool is the connection pool shared by the contribution and action
// repositories.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the engine database described by cfg.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a Pool that has answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return &Pool{pool: pool}, nil
}

// Ready checks within timeout that the database answers and that every table
// the repositories read exists.
//
// Postcondition: Returns nil, an error wrapping ErrSchemaMissing that names
// the missing tables, or the query error.
func (p *Pool) Ready(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var missing []string
	err := p.pool.QueryRow(ctx, `
		SELECT coalesce(array_agg(t ORDER BY t), '{}'::text[])
		FROM unnest($1::text[]) AS t
		WHERE to_regclass(t) IS NULL`, engineTables,
	).Scan(&missing)
	if err != nil {
		return fmt.Errorf("checking engine schema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Contributions returns a ContributionRepository on p.
func (p *Pool) Contributions() *ContributionRepository {
	return NewContributionRepository(p.pool)
}

// Actions returns an ActionRepository on p.
func (p *Pool) Actions() *ActionRepository {
	return NewActionRepository(p.pool)
}

// Close releases all pool resources. Repositories obtained from p are
// unusable afterwards.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
