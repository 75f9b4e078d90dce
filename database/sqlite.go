package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
)

type sqliteDialect struct{}

func init() {
	Register(sqliteDialect{})
}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) types(strategy treestore.Strategy) ddlTypes {
	t := ddlTypes{
		id:       "INTEGER",
		integer:  "INTEGER",
		boundary: "INTEGER",
		boolean:  "BOOLEAN",
		text:     "TEXT",
		resource: "TEXT",
	}
	if strategy == treestore.Spreaded {
		// Padded text keeps lexicographic comparison equal to numeric comparison.
		t.boundary = "TEXT"
	}
	return t
}

func (d sqliteDialect) Schema(strategy treestore.Strategy, _ boundary.Number) []string {
	return schemaFor(d.types(strategy))
}

func (sqliteDialect) BoundaryCodec(strategy treestore.Strategy, maxRight boundary.Number) boundary.Codec {
	if strategy == treestore.Spreaded {
		return boundary.DecimalCodec{Width: boundaryWidth(maxRight)}
	}
	return boundary.IntCodec{}
}

// LockRows issues a no-op update on the rows. SQLite has no row locks; the write
// promotes the transaction to a RESERVED lock which serializes writers.
func (sqliteDialect) LockRows(ctx context.Context, tx DBTX, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET ID=ID WHERE ID IN (%s)", table, placeholders(len(ids))),
		Int64Args(ids)...)
	return err
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

func (sqliteDialect) IsDeadlock(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// ConfigurePool limits the pool to one connection; SQLite allows a single writer
// and in-memory databases live as long as their connection.
func (sqliteDialect) ConfigurePool(db *sql.DB) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
}
