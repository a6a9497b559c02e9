package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-voting/internal/apperr"
)

const (
	DefaultTimeout      = 3 * time.Second
	DefaultRetryBackoff = 50 * time.Millisecond
)

// DB is the voting store. Every call runs under Timeout; idempotent reads
// are retried once after RetryBackoff.
type DB struct {
	Bun          *bun.DB
	Timeout      time.Duration
	RetryBackoff time.Duration

	// test hooks
	afterMarkSpent func(ctx context.Context, tx bun.Tx) error
	rollback       func(tx bun.Tx) error
}

func New(bunDB *bun.DB, timeout, retryBackoff time.Duration) *DB {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retryBackoff <= 0 {
		retryBackoff = DefaultRetryBackoff
	}
	return &DB{Bun: bunDB, Timeout: timeout, RetryBackoff: retryBackoff}
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.Timeout)
}

// read runs fn with a timeout and retries it once on a transient failure.
// Missing rows, domain errors and caller cancellation are never retried.
func (d *DB) read(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() error {
		opCtx, cancel := d.withTimeout(ctx)
		defer cancel()

		err := fn(opCtx)
		if err == nil {
			return nil
		}
		var appErr *apperr.Error
		if errors.Is(err, sql.ErrNoRows) || errors.As(err, &appErr) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(d.RetryBackoff), 1), ctx)
	return backoff.Retry(op, policy)
}

// inTx runs fn inside a transaction bounded by the store timeout.
func (d *DB) inTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	txCtx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.Bun.RunInTx(txCtx, nil, fn)
}

// lockingSupported reports whether the backend takes row and table locks.
// SQLite runs on one connection, so its writers are already serialized.
func lockingSupported(db bun.IDB) bool {
	return db.Dialect().Name() != dialect.SQLite
}

// forUpdate locks the selected rows until the transaction ends, so a
// concurrent vote either waits for the caller or is seen by it.
func forUpdate(db bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if lockingSupported(db) {
		return q.For("UPDATE")
	}
	return q
}

// lockVoteTables blocks vote writers on every instance for the rest of a
// bulk transaction. SHARE ROW EXCLUSIVE conflicts with the ROW EXCLUSIVE
// lock taken by the vote update, while plain reads keep going.
func lockVoteTables(ctx context.Context, tx bun.Tx) error {
	if !lockingSupported(tx) {
		return nil
	}
	_, err := tx.ExecContext(ctx, "LOCK TABLE students, clubs, votes IN SHARE ROW EXCLUSIVE MODE")
	return err
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

const savepoint = "bulk_item"

// withSavepoint isolates one item of a bulk insert so a failing row does not
// abort the surrounding transaction.
func withSavepoint(ctx context.Context, tx bun.Tx, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return rbErr
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
		return &itemError{err: err}
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint)
	return err
}

// itemError marks a per-item failure that was rolled back to its savepoint.
type itemError struct{ err error }

func (e *itemError) Error() string { return e.err.Error() }
func (e *itemError) Unwrap() error { return e.err }
