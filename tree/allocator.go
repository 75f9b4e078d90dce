package tree

import (
	"context"
	"fmt"
	"strconv"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
	"github.com/SharedCode/treestore/database"
)

// bounds is a boundary pair computed for a row before it is written.
type bounds struct {
	left, right boundary.Number
}

// allocator computes and opens boundary space for one strategy. Counters, parent
// ids and dirty flags are maintained by the caller.
type allocator interface {
	nodes() *provider
	// rootBounds are the boundaries of a freshly created root.
	rootBounds() (boundary.Number, boundary.Number)
	// insert opens room for one leaf at position under parent and returns its boundaries.
	insert(ctx context.Context, q database.DBTX, parent *NodeInfo, position int) (bounds, error)
	// move relocates the subtree of node to position among the other children of dest
	// and shifts its depths.
	move(ctx context.Context, q database.DBTX, node, dest *NodeInfo, position int) error
	// place opens room for rows, a subtree snapshot ordered by left boundary, at position
	// under dest and returns the boundaries of each row in dest.Mode.
	place(ctx context.Context, q database.DBTX, rows []*NodeInfo, dest *NodeInfo, position int) ([]bounds, error)
	// removed runs after node, and with withChildren its descendants, were deleted.
	removed(ctx context.Context, q database.DBTX, node *NodeInfo, withChildren bool) error
}

func newAllocator(db *database.DB, onReorganize func(treestore.TreeMode)) (allocator, error) {
	switch db.Options.Strategy {
	case treestore.Simple:
		return &simple{provider: &provider{db: db}}, nil
	case treestore.Spreaded:
		return &spreaded{
			provider:     &provider{db: db, maxChildRight: true},
			maxRight:     db.MaxRight,
			batchSize:    db.Options.ReorganizeBatchSize,
			onReorganize: onReorganize,
		}, nil
	}
	return nil, fmt.Errorf("unsupported strategy %q", db.Options.Strategy)
}

func toInt64(n boundary.Number) int64 {
	if i, ok := n.(boundary.Int); ok {
		return i.Int64()
	}
	v, _ := strconv.ParseInt(n.String(), 10, 64)
	return v
}
