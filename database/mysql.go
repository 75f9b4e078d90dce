package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
)

type mysqlDialect struct{}

func init() {
	Register(mysqlDialect{})
}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) types(strategy treestore.Strategy) ddlTypes {
	t := ddlTypes{
		id:            "BIGINT",
		integer:       "INTEGER",
		boundary:      "BIGINT",
		boolean:       "BOOLEAN",
		text:          "VARCHAR(1024)",
		resource:      "VARCHAR(255)",
		inlineIndexes: true,
	}
	if strategy == treestore.Spreaded {
		t.boundary = "DECIMAL(65,0)"
	}
	return t
}

func (d mysqlDialect) Schema(strategy treestore.Strategy, _ boundary.Number) []string {
	return schemaFor(d.types(strategy))
}

func (mysqlDialect) BoundaryCodec(strategy treestore.Strategy, _ boundary.Number) boundary.Codec {
	if strategy == treestore.Spreaded {
		return boundary.DecimalCodec{}
	}
	return boundary.IntCodec{}
}

func (mysqlDialect) LockRows(ctx context.Context, tx DBTX, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf("SELECT ID FROM %s WHERE ID IN (%s) FOR UPDATE", table, placeholders(len(ids))),
		Int64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// See https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlDuplicateEntry   = 1062
	mysqlDuplicateKeyName = 1582
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
)

func mysqlNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

func (mysqlDialect) IsDeadlock(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && (n == mysqlDeadlock || n == mysqlLockWaitTimeout)
}

func (mysqlDialect) IsUniqueViolation(err error) bool {
	n, ok := mysqlNumber(err)
	return ok && (n == mysqlDuplicateEntry || n == mysqlDuplicateKeyName)
}

func (mysqlDialect) ConfigurePool(db *sql.DB) {
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
}
