package tree

import (
	"context"
	"database/sql"
	"errors"
	log "log/slog"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
	"github.com/SharedCode/treestore/hooks"
	"github.com/SharedCode/treestore/sequencer"
)

// RemoveNode deletes nodeID. Without removeChildren the direct children are promoted
// to the parent of the removed node; Live removals always take the subtree.
func (s *Store) RemoveNode(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, nodeID int64, removeChildren bool) error {
	return s.mutate(ctx, tx, "removeNode", modes(mode), func(q database.DBTX) error {
		node, err := s.p.info(ctx, q, mode, nodeID)
		if err != nil {
			return err
		}
		g, err := s.guard(ctx, q, actor, mode, []int64{node.ID, node.ParentID}, node.Reference)
		if err != nil {
			return err
		}
		defer release(ctx, g)
		return s.remove(ctx, q, actor, node, removeChildren, true)
	})
}

// remove deletes node. With notify the edit permission on every removed reference
// is checked, hooks fire and orphaned folder placeholders are deleted.
func (s *Store) remove(ctx context.Context, q database.DBTX, actor treestore.ActorContext, node *NodeInfo, withChildren, notify bool) error {
	if node.IsRoot() {
		return treestore.NewError(treestore.InvalidOperation, "ex.tree.delete.root", node.Mode.String())
	}
	mode := node.Mode
	table := database.TreeTable(mode)
	if mode == treestore.Live {
		withChildren = true
	}
	chain, err := s.p.ancestorIDs(ctx, q, node, false)
	if err != nil {
		return err
	}
	if err := s.lockRows(ctx, q, mode, append(chain, node.ID)...); err != nil {
		return err
	}
	removed := []*NodeInfo{node}
	if withChildren && node.HasChildren() {
		if removed, err = s.p.subtree(ctx, q, node); err != nil {
			return err
		}
	}
	var refs, ids []int64
	for _, r := range removed {
		ids = append(ids, r.ID)
		if r.Reference != 0 {
			refs = append(refs, r.Reference)
		}
	}
	refs = unique(refs)
	if notify {
		for _, ref := range refs {
			if err := s.checkReference(ctx, actor, ref, content.Edit); err != nil {
				return err
			}
		}
		for _, r := range removed {
			s.fire(ctx, hooks.BeforeNodeRemoved, actor, r, 0, 0)
		}
	}

	delta := 1
	if withChildren {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE LFT>=? AND RGT<=?", s.bound(node.Left), s.bound(node.Right)); err != nil {
			return err
		}
		delta = node.TotalChildCount + 1
		if err := s.addDirect(ctx, q, mode, node.ParentID, -1); err != nil {
			return err
		}
	} else {
		if _, err := q.ExecContext(ctx, "UPDATE "+table+" SET PARENT=? WHERE PARENT=?", node.ParentID, node.ID); err != nil {
			return err
		}
		promote := "UPDATE " + table + " SET DEPTH=DEPTH-1 WHERE LFT>? AND RGT<?"
		if mode == treestore.Edit {
			promote = "UPDATE " + table + " SET DEPTH=DEPTH-1, DIRTY=TRUE WHERE LFT>? AND RGT<?"
		}
		if _, err := q.ExecContext(ctx, promote, s.bound(node.Left), s.bound(node.Right)); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE ID=?", node.ID); err != nil {
			return err
		}
		if err := s.addDirect(ctx, q, mode, node.ParentID, node.DirectChildCount-1); err != nil {
			return err
		}
	}
	if err := s.addTotal(ctx, q, mode, chain, -delta); err != nil {
		return err
	}
	if err := s.markDirty(ctx, q, mode, node.ParentID); err != nil {
		return err
	}
	if mode == treestore.Live {
		// The Edit counterparts now differ from what is published.
		if err := s.markEditCounterpartsDirty(ctx, q, ids); err != nil {
			return err
		}
	}
	if err := s.alloc.removed(ctx, q, node, withChildren); err != nil {
		return err
	}
	if !notify {
		return nil
	}
	if err := s.removeOrphanedFolders(ctx, q, refs); err != nil {
		return err
	}
	for _, r := range removed {
		s.fire(ctx, hooks.AfterNodeRemoved, actor, r, 0, 0)
	}
	return nil
}

func (s *Store) markEditCounterpartsDirty(ctx context.Context, q database.DBTX, ids []int64) error {
	for _, id := range ids {
		e, err := s.p.info(ctx, q, treestore.Edit, id)
		if treestore.IsCode(err, treestore.NotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.markSubtreeDirty(ctx, q, e); err != nil {
			return err
		}
	}
	return nil
}

// removeOrphanedFolders deletes folder placeholders no node and no other content references.
func (s *Store) removeOrphanedFolders(ctx context.Context, q database.DBTX, refs []int64) error {
	for _, ref := range refs {
		c, err := s.content.Load(ctx, treestore.PK{ID: ref, Version: treestore.MaxVersion})
		if treestore.IsCode(err, treestore.NotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !c.IsFolder() {
			continue
		}
		var used int
		if err := q.QueryRowContext(ctx, "SELECT (SELECT COUNT(*) FROM "+database.TableTreeEdit+" WHERE REF=?) + (SELECT COUNT(*) FROM "+
			database.TableTreeLive+" WHERE REF=?)", ref, ref).Scan(&used); err != nil {
			return err
		}
		if used > 0 {
			continue
		}
		n, err := s.content.ReferencedContentCount(ctx, ref)
		if err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if err := s.content.Remove(ctx, ref); err != nil && !treestore.IsCode(err, treestore.NotFound) {
			return err
		}
		log.Debug("orphaned folder removed", "content", ref)
	}
	return nil
}

// ContentRemoved adjusts both trees after the content item removed was deleted from
// the content store. removed is the item as it was loaded before the deletion; its
// type decides how referencing folder nodes are handled. With liveVersionOnly only
// its live version went away and the Edit tree is left alone.
func (s *Store) ContentRemoved(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, removed content.Content, liveVersionOnly bool) error {
	contentID, isFolder := removed.PK.ID, removed.IsFolder()
	return s.mutate(ctx, tx, "contentRemoved", modes(treestore.Edit, treestore.Live), func(q database.DBTX) error {
		editIDs, err := s.nodesWithReference(ctx, q, treestore.Edit, contentID)
		if err != nil {
			return err
		}
		liveIDs, err := s.nodesWithReference(ctx, q, treestore.Live, contentID)
		if err != nil {
			return err
		}
		inEdit := make(map[int64]bool, len(editIDs))
		for _, id := range editIDs {
			inEdit[id] = true
		}
		var folder int64
		for _, id := range liveIDs {
			if liveVersionOnly || !inEdit[id] {
				n, err := s.p.info(ctx, q, treestore.Live, id)
				if treestore.IsCode(err, treestore.NotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if err := s.remove(ctx, q, actor, n, true, true); err != nil {
					return err
				}
				continue
			}
			if folder, err = s.contentDeleted(ctx, q, actor, treestore.Edit, id, contentID, isFolder, folder); err != nil {
				return err
			}
			if folder, err = s.contentDeleted(ctx, q, actor, treestore.Live, id, contentID, isFolder, folder); err != nil {
				return err
			}
			delete(inEdit, id)
		}
		if liveVersionOnly {
			return nil
		}
		for _, id := range editIDs {
			if !inEdit[id] {
				continue
			}
			if folder, err = s.contentDeleted(ctx, q, actor, treestore.Edit, id, contentID, isFolder, folder); err != nil {
				return err
			}
		}
		return nil
	})
}

// contentDeleted handles one node whose reference went away: leaves are removed,
// folder references removed with their subtree in Live and promoting children in
// Edit, and anything else is pointed at a folder placeholder. The placeholder is
// created once per call chain and returned for reuse.
func (s *Store) contentDeleted(ctx context.Context, q database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, id, contentID int64, isFolder bool, folder int64) (int64, error) {
	n, err := s.p.info(ctx, q, mode, id)
	if treestore.IsCode(err, treestore.NotFound) {
		return folder, nil
	}
	if err != nil {
		return folder, err
	}
	if !n.HasChildren() {
		return folder, s.remove(ctx, q, actor, n, false, true)
	}
	if isFolder {
		return folder, s.remove(ctx, q, actor, n, mode == treestore.Live, true)
	}
	if folder == 0 {
		if folder, err = s.newFolder(ctx, actor, n.Name); err != nil {
			return 0, err
		}
	}
	if _, err := q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET REF=?, DIRTY=? WHERE ID=?",
		folder, mode != treestore.Live, id); err != nil {
		return folder, err
	}
	n.Reference = folder
	s.fire(ctx, hooks.AfterFolderReplacement, actor, n, contentID, folder)
	return folder, nil
}

// ClearTree deletes every node of mode and recreates the root.
func (s *Store) ClearTree(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode) error {
	return s.mutate(ctx, tx, "clearTree", modes(mode), func(q database.DBTX) error {
		return s.clearTree(ctx, q, actor, mode)
	})
}

func (s *Store) clearTree(ctx context.Context, q database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode) error {
	table := database.TreeTable(mode)
	var rootRef sql.NullInt64
	err := q.QueryRowContext(ctx, "SELECT REF FROM "+database.TreeTable(mode.Other())+" WHERE ID=?", treestore.RootNodeID).Scan(&rootRef)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if rootRef.Int64 == 0 {
		if rootRef.Int64, err = s.newFolder(ctx, actor, "Root"); err != nil {
			return err
		}
	}
	refs, err := s.p.int64s(ctx, q, "SELECT DISTINCT REF FROM "+table+" WHERE REF IS NOT NULL AND REF<>?", rootRef.Int64)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, "DELETE FROM "+table)
	if err != nil {
		return err
	}
	left, right := s.alloc.rootBounds()
	root := &NodeInfo{
		ID:         treestore.RootNodeID,
		Depth:      1,
		Reference:  rootRef.Int64,
		Name:       "Root",
		ModifiedAt: treestore.NowMillis(),
	}
	if err := s.insertRow(ctx, q, mode, root, bounds{left, right}); err != nil {
		return err
	}
	if err := s.seq.Reset(ctx, q, sequencer.TreeSequence(mode), treestore.RootNodeID); err != nil {
		return err
	}
	if mode == treestore.Live {
		if _, err := q.ExecContext(ctx, "UPDATE "+database.TableTreeEdit+" SET DIRTY=TRUE WHERE ID<>?", treestore.RootNodeID); err != nil {
			return err
		}
	}
	if err := s.removeOrphanedFolders(ctx, q, refs); err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	log.Info("tree cleared", "mode", mode, "removed", n)
	return nil
}

// EnsureRoots creates the root of every mode that has none.
func (s *Store) EnsureRoots(ctx context.Context, tx database.DBTX, actor treestore.ActorContext) error {
	return s.mutate(ctx, tx, "ensureRoots", modes(treestore.Edit, treestore.Live), func(q database.DBTX) error {
		for _, mode := range []treestore.TreeMode{treestore.Edit, treestore.Live} {
			ok, err := s.p.exists(ctx, q, mode, treestore.RootNodeID)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if err := s.clearTree(ctx, q, actor, mode); err != nil {
				return err
			}
		}
		return nil
	})
}
