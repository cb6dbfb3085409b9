// Package storage defines storage interfaces.
package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// QueryResults represents the results from a read query.
type QueryResults = pgx.Rows

// QueryResult represents the result from a read query.
type QueryResult = pgx.Row

// ErrNoRows is returned by QueryResult.Scan when the query matched nothing.
var ErrNoRows = pgx.ErrNoRows

// TargetStorage defines an interface for reading and writing the directory.
type TargetStorage interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)

	// Query submits a query to fetch data from target storage.
	Query(ctx context.Context, sql string, args ...interface{}) (QueryResults, error)

	// QueryRow submits a query to fetch a single row of data from target storage.
	QueryRow(ctx context.Context, sql string, args ...interface{}) QueryResult

	// Wipe removes all contents of the target storage.
	Wipe(ctx context.Context) error

	// Close shuts down the target storage client.
	Close()

	// Name returns the name of the target storage.
	Name() string
}
