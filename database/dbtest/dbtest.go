// Package dbtest opens throw-away in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

var seq atomic.Int64

// Open returns a migrated in-memory database using strategy, closed when the test ends.
func Open(t testing.TB, strategy treestore.Strategy) *database.DB {
	t.Helper()
	return OpenWithOptions(t, treestore.Options{Strategy: strategy})
}

// OpenWithOptions is Open with caller supplied options; Dialect and DSN are overridden.
func OpenWithOptions(t testing.TB, options treestore.Options) *database.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	options.Dialect = "sqlite"
	options.DSN = fmt.Sprintf("file:%s_%d?mode=memory&_pragma=busy_timeout(2000)", name, seq.Add(1))
	ctx := context.Background()
	db, err := database.Open(ctx, options)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
