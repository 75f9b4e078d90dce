package tree

import (
	"context"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
	"github.com/SharedCode/treestore/sequencer"
)

// Move makes nodeID the child of newParentID at position. Moving a node to its
// current parent and position writes nothing.
func (s *Store) Move(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, nodeID, newParentID int64, position int) error {
	return s.mutate(ctx, tx, "move", modes(mode), func(q database.DBTX) error {
		g, err := s.guard(ctx, q, actor, mode, []int64{nodeID, newParentID})
		if err != nil {
			return err
		}
		defer release(ctx, g)
		node, err := s.p.info(ctx, q, mode, nodeID)
		if err != nil {
			return err
		}
		if err := s.checkReference(ctx, actor, node.Reference, content.Edit); err != nil {
			return err
		}
		return s.move(ctx, q, mode, node, newParentID, position)
	})
}

func (s *Store) move(ctx context.Context, q database.DBTX, mode treestore.TreeMode, node *NodeInfo, newParentID int64, position int) error {
	if node.IsRoot() {
		return treestore.NewError(treestore.InvalidOperation, "ex.tree.move.root", node.ID)
	}
	dest, err := s.p.info(ctx, q, mode, newParentID)
	if err != nil {
		return err
	}
	if node.ID == dest.ID || node.IsParentOf(dest) {
		return treestore.NewError(treestore.InvalidOperation, "ex.tree.move.recursion",
			map[string]any{"id": node.ID, "parent": dest.ID, "mode": mode.String()})
	}
	sameParent := node.ParentID == dest.ID
	if sameParent {
		position = clamp(position, 0, dest.DirectChildCount-1)
		if position == node.Position {
			return nil
		}
	} else {
		position = clamp(position, 0, dest.DirectChildCount)
	}
	oldChain, err := s.p.ancestorIDs(ctx, q, node, false)
	if err != nil {
		return err
	}
	newChain, err := s.p.ancestorIDs(ctx, q, dest, true)
	if err != nil {
		return err
	}
	if err := s.lockRows(ctx, q, mode, append(append([]int64{node.ID}, oldChain...), newChain...)...); err != nil {
		return err
	}
	if err := s.alloc.move(ctx, q, node, dest, position); err != nil {
		return err
	}
	if !sameParent {
		if _, err := q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET PARENT=? WHERE ID=?", dest.ID, node.ID); err != nil {
			return err
		}
		moved := node.TotalChildCount + 1
		if err := s.addTotal(ctx, q, mode, oldChain, -moved); err != nil {
			return err
		}
		if err := s.addTotal(ctx, q, mode, newChain, moved); err != nil {
			return err
		}
		if err := s.addDirect(ctx, q, mode, node.ParentID, -1); err != nil {
			return err
		}
		if err := s.addDirect(ctx, q, mode, dest.ID, 1); err != nil {
			return err
		}
	}
	if mode == treestore.Live {
		return nil
	}
	moved, err := s.p.info(ctx, q, mode, node.ID)
	if err != nil {
		return err
	}
	if err := s.markSubtreeDirty(ctx, q, moved); err != nil {
		return err
	}
	return s.markDirty(ctx, q, mode, node.ParentID, dest.ID)
}

// Copy duplicates the subtree of nodeID as a child of newParentID at position and
// returns the id of the copy. Copying a node into its own subtree copies the
// subtree as it was before the call.
func (s *Store) Copy(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, nodeID, newParentID int64, position int) (id int64, err error) {
	err = s.mutate(ctx, tx, "copy", modes(mode), func(q database.DBTX) error {
		g, err := s.guard(ctx, q, actor, mode, []int64{newParentID})
		if err != nil {
			return err
		}
		defer release(ctx, g)
		node, err := s.p.info(ctx, q, mode, nodeID)
		if err != nil {
			return err
		}
		if err := s.checkReference(ctx, actor, node.Reference, content.Read); err != nil {
			return err
		}
		dest, err := s.p.info(ctx, q, mode, newParentID)
		if err != nil {
			return err
		}
		rows, err := s.p.subtree(ctx, q, node)
		if err != nil {
			return err
		}
		ids := make(map[int64]int64, len(rows))
		for _, r := range rows {
			if ids[r.ID], err = s.seq.NextID(ctx, q, sequencer.TreeSequence(mode)); err != nil {
				return err
			}
		}
		if err := s.paste(ctx, q, rows, dest, position, func(old int64) int64 { return ids[old] }, mode != treestore.Live); err != nil {
			return err
		}
		id = ids[node.ID]
		return nil
	})
	return id, err
}

// paste inserts rows, a subtree snapshot ordered by left boundary, below dest at
// position using newID for the row ids, and updates the counters of dest's chain.
func (s *Store) paste(ctx context.Context, q database.DBTX, rows []*NodeInfo, dest *NodeInfo, position int, newID func(int64) int64, dirty bool) error {
	chain, err := s.p.ancestorIDs(ctx, q, dest, true)
	if err != nil {
		return err
	}
	if err := s.lockRows(ctx, q, dest.Mode, chain...); err != nil {
		return err
	}
	position = clamp(position, 0, dest.DirectChildCount)
	placed, err := s.alloc.place(ctx, q, rows, dest, position)
	if err != nil {
		return err
	}
	depthDelta := dest.Depth + 1 - rows[0].Depth
	for i, r := range rows {
		c := *r
		c.ID = newID(r.ID)
		if i == 0 {
			c.ParentID = dest.ID
		} else {
			c.ParentID = newID(r.ParentID)
		}
		c.Depth = r.Depth + depthDelta
		c.Dirty = dirty
		if err := s.insertRow(ctx, q, dest.Mode, &c, placed[i]); err != nil {
			return err
		}
	}
	if err := s.addTotal(ctx, q, dest.Mode, chain, len(rows)); err != nil {
		return err
	}
	return s.addDirect(ctx, q, dest.Mode, dest.ID, 1)
}
