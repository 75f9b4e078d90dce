package tree

import (
	"context"
	"database/sql"
	"errors"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
	"github.com/SharedCode/treestore/database"
)

// simple keeps gapless integer boundaries: every structural change shifts all
// boundaries behind the change point.
type simple struct {
	*provider
}

func (s *simple) nodes() *provider { return s.provider }

func (s *simple) rootBounds() (boundary.Number, boundary.Number) {
	return boundary.Int(1), boundary.Int(2)
}

// slotLeft is the left boundary a node gets at position among the children of
// parent other than skip.
func (s *simple) slotLeft(ctx context.Context, q database.DBTX, parent *NodeInfo, position int, skip int64) (boundary.Number, error) {
	if position <= 0 {
		return parent.Left.AddInt(1), nil
	}
	rgt := boundary.Scanner{Codec: s.db.Codec}
	err := q.QueryRowContext(ctx, "SELECT RGT FROM "+database.TreeTable(parent.Mode)+
		" WHERE PARENT=? AND ID<>? ORDER BY LFT LIMIT 1 OFFSET ?", parent.ID, skip, position-1).Scan(&rgt)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !rgt.Valid) {
		return parent.Right, nil
	}
	if err != nil {
		return nil, err
	}
	return rgt.Number.AddInt(1), nil
}

// open shifts every boundary at or behind at by width.
func (s *simple) open(ctx context.Context, q database.DBTX, mode treestore.TreeMode, at boundary.Number, width int64) error {
	table := database.TreeTable(mode)
	if _, err := q.ExecContext(ctx, "UPDATE "+table+" SET RGT=RGT+? WHERE RGT>=?", width, s.bound(at)); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, "UPDATE "+table+" SET LFT=LFT+? WHERE LFT>=?", width, s.bound(at))
	return err
}

// close shifts every boundary behind after back by width.
func (s *simple) close(ctx context.Context, q database.DBTX, mode treestore.TreeMode, after boundary.Number, width int64) error {
	table := database.TreeTable(mode)
	if _, err := q.ExecContext(ctx, "UPDATE "+table+" SET LFT=LFT-? WHERE LFT>?", width, s.bound(after)); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, "UPDATE "+table+" SET RGT=RGT-? WHERE RGT>?", width, s.bound(after))
	return err
}

func (s *simple) insert(ctx context.Context, q database.DBTX, parent *NodeInfo, position int) (bounds, error) {
	left, err := s.slotLeft(ctx, q, parent, position, 0)
	if err != nil {
		return bounds{}, err
	}
	if err := s.open(ctx, q, parent.Mode, left, 2); err != nil {
		return bounds{}, err
	}
	return bounds{left, left.AddInt(1)}, nil
}

func (s *simple) move(ctx context.Context, q database.DBTX, node, dest *NodeInfo, position int) error {
	width := toInt64(node.Right.Sub(node.Left)) + 1
	destLeft, err := s.slotLeft(ctx, q, dest, position, node.ID)
	if err != nil {
		return err
	}
	if err := s.open(ctx, q, node.Mode, destLeft, width); err != nil {
		return err
	}
	// The gap may have shifted the subtree itself.
	node, err = s.info(ctx, q, node.Mode, node.ID)
	if err != nil {
		return err
	}
	delta := toInt64(destLeft.Sub(node.Left))
	if _, err := q.ExecContext(ctx, "UPDATE "+database.TreeTable(node.Mode)+
		" SET LFT=LFT+?, RGT=RGT+?, DEPTH=DEPTH+? WHERE LFT>=? AND LFT<=?",
		delta, delta, dest.Depth+1-node.Depth, s.bound(node.Left), s.bound(node.Right)); err != nil {
		return err
	}
	return s.close(ctx, q, node.Mode, node.Right, width)
}

func (s *simple) place(ctx context.Context, q database.DBTX, rows []*NodeInfo, dest *NodeInfo, position int) ([]bounds, error) {
	root := rows[0]
	width := toInt64(root.Right.Sub(root.Left)) + 1
	destLeft, err := s.slotLeft(ctx, q, dest, position, 0)
	if err != nil {
		return nil, err
	}
	if err := s.open(ctx, q, dest.Mode, destLeft, width); err != nil {
		return nil, err
	}
	shift := destLeft.Sub(root.Left)
	out := make([]bounds, len(rows))
	for i, r := range rows {
		out[i] = bounds{r.Left.Add(shift), r.Right.Add(shift)}
	}
	return out, nil
}

func (s *simple) removed(ctx context.Context, q database.DBTX, node *NodeInfo, withChildren bool) error {
	if withChildren {
		return s.close(ctx, q, node.Mode, node.Right, toInt64(node.Right.Sub(node.Left))+1)
	}
	// Promoted children move one step left into the freed left boundary.
	if _, err := q.ExecContext(ctx, "UPDATE "+database.TreeTable(node.Mode)+
		" SET LFT=LFT-1, RGT=RGT-1 WHERE LFT>? AND LFT<?", s.bound(node.Left), s.bound(node.Right)); err != nil {
		return err
	}
	return s.close(ctx, q, node.Mode, node.Right, 2)
}
