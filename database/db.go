// Package database opens the relational store behind the tree engine, creates its schema,
// runs transactions and acquires row locks with a bounded retry.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
)

// DBTX is satisfied by *sql.DB, *sql.Tx and *sql.Conn. Engine operations take
// a DBTX so they run inside the transaction owned by the caller.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a *sql.DB with its dialect and engine options.
type DB struct {
	*sql.DB
	Dialect  Dialect
	Options  treestore.Options
	MaxRight boundary.Number
	Codec    boundary.Codec
	// RowLockObserver, when set, receives the wait time of every LockRowsForUpdate call.
	RowLockObserver func(wait time.Duration, err error)
}

// Open connects using the configured dialect and DSN, applies pool limits and pings.
func Open(ctx context.Context, options treestore.Options) (*DB, error) {
	options = options.WithDefaults()
	d, err := Lookup(options.Dialect)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(d.DriverName(), options.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name(), err)
	}
	d.ConfigurePool(sqlDB)
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", d.Name(), err)
	}
	db, err := New(sqlDB, d, options)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	log.Info("database opened", "dialect", d.Name(), "strategy", options.Strategy)
	return db, nil
}

// New wraps an already opened *sql.DB.
func New(sqlDB *sql.DB, d Dialect, options treestore.Options) (*DB, error) {
	options = options.WithDefaults()
	var maxRight boundary.Number
	if options.Strategy == treestore.Spreaded {
		m, err := boundary.ParseDecimal(options.MaxRight)
		if err != nil {
			return nil, fmt.Errorf("invalid max right boundary: %w", err)
		}
		maxRight = m
	} else {
		maxRight = boundary.Int(2)
	}
	return &DB{
		DB:       sqlDB,
		Dialect:  d,
		Options:  options,
		MaxRight: maxRight,
		Codec:    d.BoundaryCodec(options.Strategy, maxRight),
	}, nil
}

// InTx runs task inside a transaction, committing on success and rolling back on error or panic.
func (db *DB) InTx(ctx context.Context, task func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && rerr != sql.ErrTxDone {
				log.Warn("rollback failed", "error", rerr)
			}
		}
	}()
	if err = task(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockRowsForUpdate takes row locks on ids in the given tree table. A database
// signalled deadlock or busy condition is retried after a fixed backoff until the
// caller's context ends or Options.RowLockDeadline elapses, which yields Timeout.
func (db *DB) LockRowsForUpdate(ctx context.Context, tx DBTX, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	start := time.Now()
	attempts := 0
	err := treestore.RetryUntil(ctx, "lockRowsForUpdate", db.Options.RowLockBackoff, db.Options.RowLockDeadline, func(ctx context.Context) error {
		attempts++
		err := db.Dialect.LockRows(ctx, tx, table, ids)
		if err == nil {
			return nil
		}
		if db.Dialect.IsDeadlock(err) {
			log.Debug("row lock conflict, retrying", "table", table, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if db.RowLockObserver != nil {
		db.RowLockObserver(time.Since(start), err)
	}
	if err == nil {
		return nil
	}
	var te treestore.ErrTimeout
	if errors.As(err, &te) {
		return treestore.Error{
			Code:     treestore.Timeout,
			Err:      err,
			UserData: map[string]any{"table": table, "ids": ids, "attempts": attempts},
		}
	}
	return treestore.WrapError(treestore.Integrity, err, map[string]any{"table": table, "ids": ids})
}
