// Package postgres implements the target storage interface
// backed by PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/storage"
)

const (
	moduleName = "postgres"
)

// Client is a client for connecting to PostgreSQL.
type Client struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ storage.TargetStorage = (*Client)(nil)

// pgxLogger is a pgx-compatible logger interface that uses msig's standard
// logger as the backend.
type pgxLogger struct {
	logger *log.Logger
}

// logFuncForLevel maps a pgx log severity level to a corresponding logger function.
func (l *pgxLogger) logFuncForLevel(level tracelog.LogLevel) func(string, ...interface{}) {
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return l.logger.Debug
	case tracelog.LogLevelInfo:
		return l.logger.Info
	case tracelog.LogLevelWarn:
		return l.logger.Warn
	case tracelog.LogLevelError, tracelog.LogLevelNone:
		return l.logger.Error
	default:
		l.logger.Warn("Unknown log level", "unknown_level", level)
		return l.logger.Info
	}
}

// Implements tracelog.Logger. Logs to the msig logger.
func (l *pgxLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	args := []interface{}{}
	for k, v := range data {
		args = append(args, k, v)
	}

	logFunc := l.logFuncForLevel(level)
	logFunc(msg, args...)
}

// NewClient creates a new PostgreSQL client.
func NewClient(connString string, l *log.Logger) (*Client, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	// For a log line to be produced, it needs to be >= the level specified
	// here, and >= the level of the underlying logger. "Info" level logs
	// every SQL statement executed.
	config.ConnConfig.Tracer = &tracelog.TraceLog{
		LogLevel: tracelog.LogLevelWarn,
		Logger: &pgxLogger{
			logger: l.WithModule(moduleName).With("db", config.ConnConfig.Database),
		},
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}
	return &Client{
		pool:   pool,
		logger: l.WithModule(moduleName),
	}, nil
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	tag, err := c.pool.Exec(ctx, sql, args...)
	if err != nil {
		c.logger.Error("failed to exec db statement",
			"error", err,
			"query_cmd", sql,
		)
		return tag, err
	}
	return tag, nil
}

// Query submits a new read query to PostgreSQL.
func (c *Client) Query(ctx context.Context, sql string, args ...interface{}) (storage.QueryResults, error) {
	rows, err := c.pool.Query(ctx, sql, args...)
	if err != nil {
		c.logger.Error("failed to query db",
			"error", err,
			"query_cmd", sql,
			"query_args", args,
		)
		return nil, err
	}
	return rows, nil
}

// QueryRow submits a new read query for a single row to PostgreSQL.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...interface{}) storage.QueryResult {
	return c.pool.QueryRow(ctx, sql, args...)
}

// Close implements the storage.TargetStorage interface for Client.
func (c *Client) Close() {
	c.pool.Close()
}

// Name implements the storage.TargetStorage interface for Client.
func (c *Client) Name() string {
	return moduleName
}

// listQualified runs a query returning (schema, name) pairs and joins them.
func (c *Client) listQualified(ctx context.Context, what string, sql string) ([]string, error) {
	rows, err := c.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}

	names := []string{}
	defer rows.Close() // Ensure rows is closed even if we return early.
	for rows.Next() {
		var schema, name string
		if err = rows.Scan(&schema, &name); err != nil {
			return nil, err
		}
		names = append(names, fmt.Sprintf("%s.%s", schema, name))
	}
	return names, rows.Err()
}

// Returns all tables that are not internal to Postgres. Table names are fully-qualified,
// i.e. of the form "<schema>.<table>".
func (c *Client) listTables(ctx context.Context) ([]string, error) {
	return c.listQualified(ctx, "tables", `
		SELECT schemaname, tablename
		FROM pg_tables
		WHERE schemaname != 'information_schema' AND schemaname NOT LIKE 'pg_%'
	`)
}

func (c *Client) listTypes(ctx context.Context) ([]string, error) {
	return c.listQualified(ctx, "types", `
		SELECT      n.nspname as schema, t.typname as type
		FROM        pg_type t
		LEFT JOIN   pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE       (t.typrelid = 0 OR (SELECT c.relkind = 'c' FROM pg_catalog.pg_class c WHERE c.oid = t.typrelid))
		AND     NOT EXISTS(SELECT 1 FROM pg_catalog.pg_type el WHERE el.oid = t.typelem AND el.typarray = t.oid)
		AND     n.nspname != 'information_schema' AND n.nspname NOT LIKE 'pg_%';
	`)
}

// Wipe removes all contents of the database, including the migration
// bookkeeping table, so migrations start from scratch.
func (c *Client) Wipe(ctx context.Context) error {
	tables, err := c.listTables(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		c.logger.Info("dropping table", "table", table)
		if _, err = c.pool.Exec(ctx, fmt.Sprintf("DROP TABLE %s CASCADE;", table)); err != nil {
			return err
		}
	}

	// Query from https://stackoverflow.com/questions/3660787/how-to-list-custom-types-using-postgres-information-schema
	types, err := c.listTypes(ctx)
	if err != nil {
		return err
	}
	for _, typ := range types {
		c.logger.Info("dropping type", "type", typ)
		if _, err = c.pool.Exec(ctx, fmt.Sprintf("DROP TYPE %s CASCADE;", typ)); err != nil {
			return err
		}
	}
	return nil
}
