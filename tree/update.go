package tree

import (
	"context"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
)

// SetData stores the opaque template payload of a node. Payloads must not contain ','.
func (s *Store) SetData(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, nodeID int64, data string) error {
	if err := checkTemplate(data); err != nil {
		return err
	}
	return s.mutate(ctx, tx, "setData", modes(mode), func(q database.DBTX) error {
		n, err := s.p.info(ctx, q, mode, nodeID)
		if err != nil {
			return err
		}
		if n.Template == data {
			return nil
		}
		if err := s.checkReference(ctx, actor, n.Reference, content.Edit); err != nil {
			return err
		}
		g, err := s.guard(ctx, q, actor, mode, []int64{nodeID})
		if err != nil {
			return err
		}
		defer release(ctx, g)
		_, err = q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET TEMPLATE=?, DIRTY=?, MODIFIED_AT=? WHERE ID=?",
			nullString(data), mode != treestore.Live, treestore.NowMillis(), nodeID)
		return err
	})
}

// UpdateName renames a node. Names are trimmed and must not contain '/'.
func (s *Store) UpdateName(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, nodeID int64, name string) error {
	return s.mutate(ctx, tx, "updateName", modes(mode), func(q database.DBTX) error {
		n, err := s.p.info(ctx, q, mode, nodeID)
		if err != nil {
			return err
		}
		name, err := cleanName(name, nodeID)
		if err != nil {
			return err
		}
		if name == n.Name {
			return nil
		}
		if err := s.checkReference(ctx, actor, n.Reference, content.Edit); err != nil {
			return err
		}
		g, err := s.guard(ctx, q, actor, mode, []int64{nodeID})
		if err != nil {
			return err
		}
		defer release(ctx, g)
		_, err = q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET NAME=?, DIRTY=?, MODIFIED_AT=? WHERE ID=?",
			name, mode != treestore.Live, treestore.NowMillis(), nodeID)
		return err
	})
}

// UpdateReference points a node at another content item.
func (s *Store) UpdateReference(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, nodeID, reference int64) error {
	if reference <= 0 {
		return treestore.NewError(treestore.InvalidOperation, "ex.tree.reference.invalid", reference)
	}
	return s.mutate(ctx, tx, "updateReference", modes(mode), func(q database.DBTX) error {
		n, err := s.p.info(ctx, q, mode, nodeID)
		if err != nil {
			return err
		}
		if err := s.checkReference(ctx, actor, reference, content.Read); err != nil {
			return err
		}
		g, err := s.guard(ctx, q, actor, mode, []int64{nodeID}, n.Reference, reference)
		if err != nil {
			return err
		}
		defer release(ctx, g)
		_, err = q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET REF=?, DIRTY=?, MODIFIED_AT=? WHERE ID=?",
			reference, mode != treestore.Live, treestore.NowMillis(), nodeID)
		return err
	})
}
