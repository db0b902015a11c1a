package database

import "context"

// Querier runs read-only statements. Both the pool and a single acquired
// connection satisfy it.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) (Row, error)
}

// DB is the central contract for all database access.
// Layers above this package talk only to this interface;
// they never import the postgres or libpq packages directly.
type DB interface {
	Querier

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Acquire reserves one connection from the pool. Statements issued on the
	// returned Conn share a single server session until Release.
	Acquire(ctx context.Context) (Conn, error)

	// Close releases all resources held by the connection pool.
	Close()
}

// Conn is a single reserved database session.
type Conn interface {
	Querier

	// Release returns the connection to the pool.
	Release()
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Values returns the current row decoded into Go-native values,
	// in column order.
	Values() ([]any, error)

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}
