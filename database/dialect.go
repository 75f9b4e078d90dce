package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
)

// Dialect is the small capability interface covering the differences between SQL backends.
type Dialect interface {
	// Name is the configuration name, e.g. "sqlite".
	Name() string
	// DriverName is the database/sql driver name.
	DriverName() string
	// Schema returns the DDL statements creating all tables, in order, for the given strategy.
	Schema(strategy treestore.Strategy, maxRight boundary.Number) []string
	// BoundaryCodec returns the codec matching the boundary column type of the strategy.
	BoundaryCodec(strategy treestore.Strategy, maxRight boundary.Number) boundary.Codec
	// LockRows takes database row locks on the given ids of table within tx.
	LockRows(ctx context.Context, tx DBTX, table string, ids []int64) error
	// IsDeadlock reports a lock conflict the database wants retried.
	IsDeadlock(err error) bool
	// IsUniqueViolation reports a unique key violation.
	IsUniqueViolation(err error) bool
	// ConfigurePool applies driver specific pool limits.
	ConfigurePool(db *sql.DB)
}

var (
	dialectsMux sync.RWMutex
	dialects    = map[string]Dialect{}
)

// Register makes a dialect available by name. It panics on duplicates.
func Register(d Dialect) {
	dialectsMux.Lock()
	defer dialectsMux.Unlock()
	if _, exists := dialects[d.Name()]; exists {
		panic(fmt.Sprintf("dialect %s registered twice", d.Name()))
	}
	dialects[d.Name()] = d
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	dialectsMux.RLock()
	defer dialectsMux.RUnlock()
	if d, ok := dialects[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown dialect %q, available: %v", name, dialectNames())
}

func dialectNames() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

// Placeholders returns n comma separated '?' markers.
func Placeholders(n int) string {
	return placeholders(n)
}

// Int64Args converts ids into statement arguments.
func Int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
