// Package libpq implements database.DB on database/sql with the lib/pq
// driver, using sqlx for connection setup and positional row decoding.
package libpq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/errs"
	"github.com/lib/pq"
)

// driverName is the database/sql name lib/pq registers itself under.
const driverName = "postgres"

// Driver is a lib/pq implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sqlx.DB
}

// New opens a connection pool using the provided Config and returns a Driver.
// It pings the server before returning.
func New(ctx context.Context, cfg database.Config) (*Driver, error) {
	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	db, err := sqlx.ConnectContext(connectCtx, driverName, cfg.DSN)
	if err != nil {
		return nil, mapError(err, "failed to connect")
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	return &Driver{db: db}, nil
}

// NewFromDB wraps an already opened *sql.DB. The Driver takes ownership and
// closes it on Close.
func NewFromDB(db *sql.DB) *Driver {
	return &Driver{db: sqlx.NewDb(db, driverName)}
}

// --- database.DB implementation ---

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return newRows(rows)
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	return &sqlRow{row: d.db.QueryRowxContext(ctx, query, args...)}, nil
}

// Acquire pins one *sql.Conn from the pool.
func (d *Driver) Acquire(ctx context.Context) (database.Conn, error) {
	conn, err := d.db.Connx(ctx)
	if err != nil {
		return nil, mapError(err, "failed to acquire connection")
	}
	return &sqlConn{conn: conn}, nil
}

// --- sql.DB type wrappers ---

type sqlConn struct {
	conn *sqlx.Conn
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := c.conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return newRows(rows)
}

func (c *sqlConn) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	return &sqlRow{row: c.conn.QueryRowxContext(ctx, query, args...)}, nil
}

func (c *sqlConn) Release() { _ = c.conn.Close() }

type sqlRows struct {
	rows *sqlx.Rows
	// binary marks columns whose []byte values are real bytea payloads;
	// lib/pq hands every other text-format column back as []byte too.
	// Resolved on the first Values call.
	binary []bool
}

func newRows(rows *sqlx.Rows) (*sqlRows, error) {
	return &sqlRows{rows: rows}, nil
}

func (r *sqlRows) columnKinds() error {
	if r.binary != nil {
		return nil
	}
	types, err := r.rows.ColumnTypes()
	if err != nil {
		return err
	}
	r.binary = make([]bool, len(types))
	for i, ct := range types {
		r.binary[i] = strings.EqualFold(ct.DatabaseTypeName(), "BYTEA")
	}
	return nil
}

func (r *sqlRows) Next() bool                 { return r.rows.Next() }
func (r *sqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlRows) Close()                     { _ = r.rows.Close() }

func (r *sqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *sqlRows) Values() ([]any, error) {
	if err := r.columnKinds(); err != nil {
		return nil, mapError(err, "failed to read column types")
	}
	vals, err := r.rows.SliceScan()
	if err != nil {
		return nil, mapError(err, "decode failed")
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok && !r.binary[i] {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

type sqlRow struct {
	row *sqlx.Row
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

// --- error mapping ---

// mapError translates lib/pq and database/sql errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return errs.Wrap(
			database.KindForSQLState(string(pqErr.Code)),
			fmt.Sprintf("%s: %s", msg, pqErr.Message),
			err,
		)
	}

	return database.Classify(err, msg)
}
