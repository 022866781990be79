// Package databasetest provides a canned database.DB implementation for
// exercising repository and service behavior without a live Postgres.
package databasetest

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ExecCall records one ExecContext invocation.
type ExecCall struct {
	Query string
	Args  []any
}

// FakeDB implements database.DB with function hooks. Every ExecContext call
// is recorded so tests can assert statement ordering. An unset ExecFn
// succeeds affecting no rows, an unset GetFn reports no rows, and an unset
// SelectFn leaves the destination empty.
type FakeDB struct {
	ExecCalls []ExecCall
	ExecFn    func(query string, args []any) (sql.Result, error)
	GetFn     func(dest any, query string, args []any) error
	SelectFn  func(dest any, query string, args []any) error
}

func (f *FakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.ExecCalls = append(f.ExecCalls, ExecCall{Query: query, Args: args})
	if f.ExecFn != nil {
		return f.ExecFn(query, args)
	}
	return Result{}, nil
}

func (f *FakeDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if f.GetFn != nil {
		return f.GetFn(dest, query, args)
	}
	return sql.ErrNoRows
}

func (f *FakeDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if f.SelectFn != nil {
		return f.SelectFn(dest, query, args)
	}
	return nil
}

func (f *FakeDB) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, errors.New("transactions are not supported by the fake database")
}

func (f *FakeDB) PingContext(ctx context.Context) error { return nil }

func (f *FakeDB) Close() error { return nil }

func (f *FakeDB) Unsafe() *sqlx.DB { return nil }

// Result is a canned sql.Result.
type Result struct {
	LastID int64
	Rows   int64
}

func (r Result) LastInsertId() (int64, error) { return r.LastID, nil }

func (r Result) RowsAffected() (int64, error) { return r.Rows, nil }
