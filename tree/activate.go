package tree

import (
	"context"
	log "log/slog"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// ActivateNode publishes nodeID, but not its descendants, to the Live tree. Missing
// Live ancestors are published first so the node is reachable from the Live root.
func (s *Store) ActivateNode(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, nodeID int64) error {
	return s.mutate(ctx, tx, "activateNode", modes(treestore.Live, treestore.Edit), func(q database.DBTX) error {
		chain, err := s.p.idChain(ctx, q, treestore.Edit, nodeID)
		if err != nil {
			return err
		}
		g, err := s.guard(ctx, q, actor, treestore.Live, chain)
		if err != nil {
			return err
		}
		defer release(ctx, g)
		if err := s.activateChain(ctx, q, actor, chain); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, "UPDATE "+database.TableTreeEdit+" SET DIRTY=FALSE WHERE ID=?", nodeID)
		return err
	})
}

// activateChain publishes the Edit nodes chain, ordered root first, one by one.
func (s *Store) activateChain(ctx context.Context, q database.DBTX, actor treestore.ActorContext, chain []int64) error {
	for _, id := range chain {
		if id == treestore.RootNodeID {
			continue
		}
		if err := s.activateOne(ctx, q, actor, id); err != nil {
			return err
		}
	}
	return nil
}

// livePosition is the position of Edit node e among its Live siblings: the number of
// its Edit siblings in front of it that are already published.
func (s *Store) livePosition(ctx context.Context, q database.DBTX, e *NodeInfo) (int, error) {
	var pos int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+database.TableTreeEdit+" e WHERE e.PARENT=? AND e.LFT<? AND EXISTS (SELECT 1 FROM "+
		database.TableTreeLive+" l WHERE l.ID=e.ID AND l.PARENT=e.PARENT)", e.ParentID, s.bound(e.Left)).Scan(&pos)
	return pos, err
}

// purgeLiveChildren removes the Live children of parent that no longer exist in Edit.
func (s *Store) purgeLiveChildren(ctx context.Context, q database.DBTX, actor treestore.ActorContext, parent int64) error {
	stale, err := s.p.int64s(ctx, q, "SELECT l.ID FROM "+database.TableTreeLive+" l WHERE l.PARENT=? AND NOT EXISTS (SELECT 1 FROM "+
		database.TableTreeEdit+" e WHERE e.ID=l.ID)", parent)
	if err != nil {
		return err
	}
	for _, id := range stale {
		n, err := s.p.info(ctx, q, treestore.Live, id)
		if err != nil {
			return err
		}
		if err := s.remove(ctx, q, actor, n, true, true); err != nil {
			return err
		}
	}
	return nil
}

// activateOne creates or repositions the Live copy of Edit node id under its Edit
// parent, which must already be live, and copies name, reference and template.
func (s *Store) activateOne(ctx context.Context, q database.DBTX, actor treestore.ActorContext, id int64) error {
	e, err := s.p.info(ctx, q, treestore.Edit, id)
	if err != nil {
		return err
	}
	if err := s.purgeLiveChildren(ctx, q, actor, e.ParentID); err != nil {
		return err
	}
	position, err := s.livePosition(ctx, q, e)
	if err != nil {
		return err
	}
	live, err := s.p.info(ctx, q, treestore.Live, id)
	if treestore.IsCode(err, treestore.NotFound) {
		_, err = s.createNode(ctx, q, actor, treestore.Live, NewNode{
			ID:        e.ID,
			ParentID:  e.ParentID,
			Name:      e.Name,
			Position:  position,
			Reference: e.Reference,
			Template:  e.Template,
		})
		return err
	}
	if err != nil {
		return err
	}
	if live.ParentID != e.ParentID || live.Position != position {
		if err := s.move(ctx, q, treestore.Live, live, e.ParentID, position); err != nil {
			return err
		}
	}
	_, err = q.ExecContext(ctx, "UPDATE "+database.TableTreeLive+" SET NAME=?, REF=?, TEMPLATE=?, MODIFIED_AT=? WHERE ID=?",
		e.Name, nullInt(e.Reference), nullString(e.Template), treestore.NowMillis(), id)
	return err
}

// ActivateSubtree publishes nodeID with all its descendants, replacing whatever the
// Live tree holds for those ids. Activating the root activates everything.
func (s *Store) ActivateSubtree(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, nodeID int64) error {
	if nodeID == treestore.RootNodeID {
		return s.ActivateAll(ctx, tx, actor)
	}
	return s.mutate(ctx, tx, "activateSubtree", modes(treestore.Live, treestore.Edit), func(q database.DBTX) error {
		e, err := s.p.info(ctx, q, treestore.Edit, nodeID)
		if err != nil {
			return err
		}
		parents, err := s.p.ancestorIDs(ctx, q, e, false)
		if err != nil {
			return err
		}
		g, err := s.guard(ctx, q, actor, treestore.Live, append(parents, nodeID))
		if err != nil {
			return err
		}
		defer release(ctx, g)
		if err := s.activateChain(ctx, q, actor, parents); err != nil {
			return err
		}
		if err := s.purgeLiveChildren(ctx, q, actor, e.ParentID); err != nil {
			return err
		}
		rows, err := s.p.subtree(ctx, q, e)
		if err != nil {
			return err
		}
		for _, r := range rows {
			l, err := s.p.info(ctx, q, treestore.Live, r.ID)
			if treestore.IsCode(err, treestore.NotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := s.remove(ctx, q, actor, l, true, false); err != nil {
				return err
			}
		}
		parent, err := s.p.info(ctx, q, treestore.Live, e.ParentID)
		if err != nil {
			return err
		}
		position, err := s.livePosition(ctx, q, e)
		if err != nil {
			return err
		}
		if err := s.paste(ctx, q, rows, parent, position, func(id int64) int64 { return id }, false); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, "UPDATE "+database.TableTreeEdit+" SET DIRTY=FALSE WHERE LFT>=? AND RGT<=?",
			s.bound(e.Left), s.bound(e.Right))
		return err
	})
}

// ActivateAll replaces the Live tree with a copy of the Edit tree and clears every
// dirty flag.
func (s *Store) ActivateAll(ctx context.Context, tx database.DBTX, actor treestore.ActorContext) error {
	return s.mutate(ctx, tx, "activateAll", modes(treestore.Live, treestore.Edit), func(q database.DBTX) error {
		g, err := s.guard(ctx, q, actor, treestore.Live, []int64{treestore.RootNodeID})
		if err != nil {
			return err
		}
		defer release(ctx, g)
		if _, err := q.ExecContext(ctx, "DELETE FROM "+database.TableTreeLive); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, "INSERT INTO "+database.TableTreeLive+" ("+nodeColumns+") SELECT "+
			"ID, PARENT, DEPTH, LFT, RGT, FALSE, CHILDCOUNT, TOTAL_CHILDCOUNT, REF, NAME, TEMPLATE, MODIFIED_AT FROM "+database.TableTreeEdit)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, "UPDATE "+database.TableTreeEdit+" SET DIRTY=FALSE"); err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		log.Info("edit tree activated", "nodes", n, "user", actor.UserID)
		return nil
	})
}
