package database

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
)

// Table names. The Edit and Live trees share one schema.
const (
	TableTreeEdit = "TREE_EDIT"
	TableTreeLive = "TREE_LIVE"
	TableLocks    = "TREE_LOCKS"
	TableSequence = "TREE_SEQUENCE"
)

// TreeTable returns the table holding the given tree mode.
func TreeTable(mode treestore.TreeMode) string {
	if mode == treestore.Live {
		return TableTreeLive
	}
	return TableTreeEdit
}

type ddlTypes struct {
	id       string
	integer  string
	boundary string
	boolean  string
	text     string
	resource string
	// inlineIndexes puts index definitions in CREATE TABLE instead of separate statements.
	inlineIndexes bool
}

func treeTableDDL(table string, t ddlTypes) []string {
	cols := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	ID %[2]s NOT NULL PRIMARY KEY,
	PARENT %[2]s,
	DEPTH %[3]s NOT NULL,
	LFT %[4]s NOT NULL,
	RGT %[4]s NOT NULL,
	DIRTY %[5]s NOT NULL DEFAULT FALSE,
	CHILDCOUNT %[3]s NOT NULL DEFAULT 0,
	TOTAL_CHILDCOUNT %[3]s NOT NULL DEFAULT 0,
	REF %[2]s,
	NAME %[6]s,
	TEMPLATE %[6]s,
	MODIFIED_AT %[2]s NOT NULL DEFAULT 0`, table, t.id, t.integer, t.boundary, t.boolean, t.text)
	if t.inlineIndexes {
		cols += fmt.Sprintf(`,
	INDEX IX_%[1]s_LFT (LFT),
	INDEX IX_%[1]s_RGT (RGT),
	INDEX IX_%[1]s_PARENT (PARENT),
	INDEX IX_%[1]s_REF (REF)`, table)
		return []string{cols + "\n)"}
	}
	return []string{
		cols + "\n)",
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS IX_%[1]s_LFT ON %[1]s (LFT)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS IX_%[1]s_RGT ON %[1]s (RGT)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS IX_%[1]s_PARENT ON %[1]s (PARENT)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS IX_%[1]s_REF ON %[1]s (REF)", table),
	}
}

func lockTableDDL(t ddlTypes) []string {
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
	LOCK_ID %[2]s,
	LOCK_VER %[3]s,
	LOCK_RESOURCE %[4]s,
	USER_ID %[2]s NOT NULL,
	LOCKTYPE %[3]s NOT NULL,
	CREATED_AT %[2]s NOT NULL,
	EXPIRES_AT %[2]s NOT NULL,
	CHECK ((LOCK_ID IS NULL AND LOCK_VER IS NULL AND LOCK_RESOURCE IS NOT NULL) OR
		(LOCK_ID IS NOT NULL AND LOCK_VER IS NOT NULL AND LOCK_RESOURCE IS NULL))`, TableLocks, t.id, t.integer, t.resource)
	if t.inlineIndexes {
		create += fmt.Sprintf(`,
	UNIQUE KEY UK_%[1]s_PK (LOCK_ID, LOCK_VER),
	UNIQUE KEY UK_%[1]s_RESOURCE (LOCK_RESOURCE),
	INDEX IX_%[1]s_USER (USER_ID),
	INDEX IX_%[1]s_EXPIRES (EXPIRES_AT)`, TableLocks)
		return []string{create + "\n)"}
	}
	return []string{
		create + "\n)",
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS UK_%[1]s_PK ON %[1]s (LOCK_ID, LOCK_VER)", TableLocks),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS UK_%[1]s_RESOURCE ON %[1]s (LOCK_RESOURCE)", TableLocks),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS IX_%[1]s_USER ON %[1]s (USER_ID)", TableLocks),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS IX_%[1]s_EXPIRES ON %[1]s (EXPIRES_AT)", TableLocks),
	}
}

func sequenceTableDDL(t ddlTypes) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	NAME %s NOT NULL PRIMARY KEY,
	ID %s NOT NULL
)`, TableSequence, t.resource, t.id)}
}

func schemaFor(t ddlTypes) []string {
	var stmts []string
	stmts = append(stmts, treeTableDDL(TableTreeEdit, t)...)
	stmts = append(stmts, treeTableDDL(TableTreeLive, t)...)
	stmts = append(stmts, lockTableDDL(t)...)
	stmts = append(stmts, sequenceTableDDL(t)...)
	return stmts
}

// Migrate creates all tables and indexes that do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range db.Dialect.Schema(db.Options.Strategy, db.MaxRight) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s schema: %w", db.Dialect.Name(), err)
		}
	}
	log.Debug("schema migrated", "dialect", db.Dialect.Name(), "strategy", db.Options.Strategy)
	return nil
}

// boundaryWidth is the padded text width of spreaded boundaries: one digit of headroom over maxRight.
func boundaryWidth(maxRight boundary.Number) int {
	if maxRight == nil {
		return len(treestore.DefaultMaxRight) + 1
	}
	return len(maxRight.String()) + 1
}
