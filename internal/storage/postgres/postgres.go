// Package postgres opens the pgx connection pool used by the Postgres stores.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Open connects to url and verifies the connection with a ping.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraint is non-empty it must also match the violated constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// ValidID reports whether id can be a primary key. Primary keys are UUIDs, so
// anything else can never match a row and is treated as not found by callers.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// PoolStats reports the open and acquired connection counts of pool.
func PoolStats(pool *pgxpool.Pool) func() (open, inUse int64) {
	return func() (int64, int64) {
		st := pool.Stat()
		return int64(st.TotalConns()), int64(st.AcquiredConns())
	}
}
