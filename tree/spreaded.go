package tree

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
	"github.com/SharedCode/treestore/database"
)

// GoUp is the minimum spacing a node must still offer before makeSpace stops
// escalating to its parent.
const GoUp = 1024

// innerSpace is the number of free boundary values strictly inside n.
func (n *NodeInfo) innerSpace() boundary.Number {
	return n.Right.Sub(n.Left).AddInt(-1)
}

// Spacing is the gap between boundaries if count descendants were spread evenly inside n.
func (n *NodeInfo) Spacing(count int64) boundary.Number {
	return n.innerSpace().AddInt(-2 * count).QuoInt(2*count + 1)
}

// DefaultSpacing is the spacing for the current descendants.
func (n *NodeInfo) DefaultSpacing() boundary.Number {
	return n.Spacing(int64(n.TotalChildCount))
}

// IsSpaceOptimizable reports whether a reorganization of n would leave usable spacing.
func (n *NodeInfo) IsSpaceOptimizable() bool {
	return n.DefaultSpacing().Cmp(boundary.Int(3)) > 0
}

// HasSpaceFor reports whether count descendants fit inside n with at least spacing
// free values around every boundary.
func (n *NodeInfo) HasSpaceFor(count, spacing int64) bool {
	need := boundary.NewDecimal(2*count + 1).MulInt(spacing).AddInt(2 * count)
	return n.innerSpace().Sub(need).Sign() > 0
}

// spreaded allocates wide decimal boundaries and reorganizes a subtree only when
// the local gap is used up.
type spreaded struct {
	*provider
	maxRight     boundary.Number
	batchSize    int
	onReorganize func(treestore.TreeMode)
}

func (s *spreaded) nodes() *provider { return s.provider }

func (s *spreaded) rootBounds() (boundary.Number, boundary.Number) {
	return boundary.NewDecimal(1), s.maxRight
}

// boundaries returns the free interval in front of the child at position of n.
func (s *spreaded) boundaries(ctx context.Context, q database.DBTX, n *NodeInfo, position int) (bounds, error) {
	if position < 0 {
		position = 0
	}
	if !n.HasChildren() {
		return bounds{n.Left, n.Right}, nil
	}
	if position >= n.DirectChildCount {
		if n.MaxChildRight == nil {
			return bounds{}, treestore.NewError(treestore.Integrity, "ex.tree.boundaries.noMaxChild", n.ID)
		}
		return bounds{n.MaxChildRight, n.Right}, nil
	}
	offset := position - 1
	if position == 0 {
		offset = 0
	}
	rows, err := q.QueryContext(ctx, "SELECT LFT, RGT FROM "+database.TreeTable(n.Mode)+
		" WHERE PARENT=? ORDER BY LFT LIMIT 2 OFFSET ?", n.ID, offset)
	if err != nil {
		return bounds{}, err
	}
	defer rows.Close()
	var found []bounds
	for rows.Next() {
		l := boundary.Scanner{Codec: s.db.Codec}
		r := boundary.Scanner{Codec: s.db.Codec}
		if err := rows.Scan(&l, &r); err != nil {
			return bounds{}, err
		}
		found = append(found, bounds{l.Number, r.Number})
	}
	if err := rows.Err(); err != nil {
		return bounds{}, err
	}
	if len(found) == 0 {
		return bounds{}, treestore.NewError(treestore.Integrity, "ex.tree.boundaries.childCount",
			map[string]any{"id": n.ID, "position": position})
	}
	if position == 0 {
		return bounds{n.Left, found[0].left}, nil
	}
	if len(found) == 1 {
		return bounds{found[0].right, n.Right}, nil
	}
	return bounds{found[0].right, found[1].left}, nil
}

func (s *spreaded) insert(ctx context.Context, q database.DBTX, parent *NodeInfo, position int) (bounds, error) {
	for attempt := 0; ; attempt++ {
		b, err := s.boundaries(ctx, q, parent, position)
		if err != nil {
			return bounds{}, err
		}
		// Left spacing, node, right spacing.
		spacing := b.right.Sub(b.left).AddInt(-2).QuoInt(3)
		if spacing.Sign() > 0 {
			left := b.left.Add(spacing).AddInt(1)
			return bounds{left, left.Add(spacing).AddInt(1)}, nil
		}
		if attempt > 0 {
			return bounds{}, capacityError(parent, position)
		}
		if _, err := s.makeSpace(ctx, q, parent, position, 1); err != nil {
			return bounds{}, err
		}
		if parent, err = s.info(ctx, q, parent.Mode, parent.ID); err != nil {
			return bounds{}, err
		}
	}
}

func capacityError(n *NodeInfo, position int) error {
	return treestore.NewError(treestore.Capacity, "ex.tree.makeSpace.failed",
		map[string]any{"id": n.ID, "mode": n.Mode.String(), "position": position})
}

// makeSpace makes room for additional nodes at position under dest and returns the
// spacing to lay them out with. When the gap is already wide enough nothing is
// written; otherwise the closest ancestor able to hold its subtree plus the new
// nodes with GoUp spacing (the root as last resort) is reorganized.
func (s *spreaded) makeSpace(ctx context.Context, q database.DBTX, dest *NodeInfo, position int, additional int) (boundary.Number, error) {
	b, err := s.boundaries(ctx, q, dest, position)
	if err != nil {
		return nil, err
	}
	a := int64(additional)
	if fit := b.right.Sub(b.left).AddInt(-2 * a).QuoInt(2*a + 1); fit.Cmp(boundary.Int(GoUp)) >= 0 {
		return fit, nil
	}
	node := dest
	total := int64(dest.TotalChildCount) + a
	for !node.HasSpaceFor(total, GoUp) {
		if node.IsRoot() {
			if node.HasSpaceFor(total, 2) {
				break
			}
			return nil, capacityError(dest, position)
		}
		if node, err = s.info(ctx, q, node.Mode, node.ParentID); err != nil {
			return nil, err
		}
		total = int64(node.TotalChildCount) + a
	}
	spacing := node.Spacing(total)
	insertSpace := spacing.MulInt(2*a + 1).AddInt(2 * a)
	if err := s.reorganize(ctx, q, node, spacing, b.left, insertSpace); err != nil {
		return nil, err
	}
	return spacing, nil
}

// reorganize rewrites the descendants of n in place with the given spacing and
// opens insertSpace behind the boundary insertAt.
func (s *spreaded) reorganize(ctx context.Context, q database.DBTX, n *NodeInfo, spacing, insertAt, insertSpace boundary.Number) error {
	rows, err := s.descendants(ctx, q, n)
	if err != nil {
		return err
	}
	placed := layout(rows, n.Left, n.Depth+1, spacing, insertAt, insertSpace)
	if err := s.write(ctx, q, n.Mode, rows, placed, 0); err != nil {
		return treestore.WrapError(treestore.Integrity, err, map[string]any{"id": n.ID, "mode": n.Mode.String()})
	}
	log.Info("subtree reorganized", "node", n.ID, "mode", n.Mode, "rows", len(rows), "spacing", spacing.String())
	if s.onReorganize != nil {
		s.onReorganize(n.Mode)
	}
	return nil
}

// layout assigns boundaries to rows, a preorder sequence ordered by left boundary
// whose top level rows have depth firstDepth, starting behind start. Each boundary
// is followed by spacing free values; an inner row's right boundary leaves room
// for all its descendants. Rows with old boundaries behind insertAt are shifted by
// insertSpace; insertAt may be nil.
func layout(rows []*NodeInfo, start boundary.Number, firstDepth int, spacing, insertAt, insertSpace boundary.Number) []bounds {
	step := spacing.AddInt(1)
	left := start
	lastDepth := firstDepth
	out := make([]bounds, len(rows))
	for i, r := range rows {
		left = left.Add(step)
		if lastDepth > r.Depth {
			left = left.Add(step.MulInt(int64(lastDepth - r.Depth)))
		}
		right := left.Add(step)
		next := right
		if tc := int64(r.TotalChildCount); tc > 0 {
			right = right.Add(spacing.MulInt(2 * tc)).AddInt(2*tc - 1)
			next = left
		}
		b := bounds{left, right}
		if insertAt != nil {
			if r.Left.Cmp(insertAt) > 0 {
				b.left = b.left.Add(insertSpace)
			}
			if r.Right.Cmp(insertAt) > 0 {
				b.right = b.right.Add(insertSpace)
			}
		}
		out[i] = b
		left = next
		lastDepth = r.Depth
	}
	return out
}

// write updates boundaries and depth of rows in batches.
func (s *spreaded) write(ctx context.Context, q database.DBTX, mode treestore.TreeMode, rows []*NodeInfo, placed []bounds, depthDelta int) error {
	stmt := "UPDATE " + database.TreeTable(mode) + " SET LFT=?, RGT=?, DEPTH=? WHERE ID=?"
	batch := s.batchSize
	if batch <= 0 {
		batch = len(rows)
	}
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		for i := start; i < end; i++ {
			if _, err := q.ExecContext(ctx, stmt, s.bound(placed[i].left), s.bound(placed[i].right),
				rows[i].Depth+depthDelta, rows[i].ID); err != nil {
				return fmt.Errorf("rewrite node %d: %w", rows[i].ID, err)
			}
		}
		log.Debug("boundary batch written", "mode", mode, "from", start, "to", end)
	}
	return nil
}

// slot maps a target index among the siblings after the move to the child
// position getBoundaries expects while node still occupies its old slot.
func slot(node, dest *NodeInfo, position int) int {
	if node.ParentID == dest.ID && position > node.Position {
		return position + 1
	}
	return position
}

func (s *spreaded) move(ctx context.Context, q database.DBTX, node, dest *NodeInfo, position int) error {
	at := slot(node, dest, position)
	spacing, err := s.makeSpace(ctx, q, dest, at, node.TotalChildCount+1)
	if err != nil {
		return err
	}
	if dest, err = s.info(ctx, q, dest.Mode, dest.ID); err != nil {
		return err
	}
	if node, err = s.info(ctx, q, node.Mode, node.ID); err != nil {
		return err
	}
	b, err := s.boundaries(ctx, q, dest, at)
	if err != nil {
		return err
	}
	rows, err := s.subtree(ctx, q, node)
	if err != nil {
		return err
	}
	placed := layout(rows, b.left, node.Depth, spacing, nil, nil)
	if placed[0].right.Cmp(b.right) >= 0 {
		return treestore.NewError(treestore.Integrity, "ex.tree.move.noSpace", map[string]any{"id": node.ID, "dest": dest.ID})
	}
	return s.write(ctx, q, node.Mode, rows, placed, dest.Depth+1-node.Depth)
}

func (s *spreaded) place(ctx context.Context, q database.DBTX, rows []*NodeInfo, dest *NodeInfo, position int) ([]bounds, error) {
	spacing, err := s.makeSpace(ctx, q, dest, position, len(rows))
	if err != nil {
		return nil, err
	}
	if dest, err = s.info(ctx, q, dest.Mode, dest.ID); err != nil {
		return nil, err
	}
	b, err := s.boundaries(ctx, q, dest, position)
	if err != nil {
		return nil, err
	}
	placed := layout(rows, b.left, rows[0].Depth, spacing, nil, nil)
	if placed[0].right.Cmp(b.right) >= 0 {
		return nil, treestore.NewError(treestore.Integrity, "ex.tree.copy.noSpace", map[string]any{"id": rows[0].ID, "dest": dest.ID})
	}
	return placed, nil
}

// removed leaves the hole; spreaded boundaries never need closing.
func (s *spreaded) removed(context.Context, database.DBTX, *NodeInfo, bool) error {
	return nil
}
