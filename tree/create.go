package tree

import (
	"context"
	"strings"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
	"github.com/SharedCode/treestore/sequencer"
)

// NewNode describes a node to create.
type NewNode struct {
	// ID is taken from the sequencer when zero.
	ID       int64
	ParentID int64
	// Name defaults to the node id; it must not contain '/'.
	Name string
	// Position among the children of ParentID; out of range values are clamped.
	Position int
	// Reference to a content item; zero creates a folder placeholder.
	Reference int64
	Template  string
}

// CreateNode inserts a leaf and returns its id.
func (s *Store) CreateNode(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, n NewNode) (id int64, err error) {
	err = s.mutate(ctx, tx, "createNode", modes(mode), func(q database.DBTX) error {
		id, err = s.createNode(ctx, q, actor, mode, n)
		return err
	})
	return id, err
}

func (s *Store) createNode(ctx context.Context, q database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, n NewNode) (int64, error) {
	if err := checkTemplate(n.Template); err != nil {
		return 0, err
	}
	parent, err := s.p.info(ctx, q, mode, n.ParentID)
	if err != nil {
		return 0, err
	}
	chain, err := s.p.ancestorIDs(ctx, q, parent, true)
	if err != nil {
		return 0, err
	}
	if err := s.lockRows(ctx, q, mode, chain...); err != nil {
		return 0, err
	}
	g, err := s.guard(ctx, q, actor, mode, []int64{parent.ID}, n.Reference)
	if err != nil {
		return 0, err
	}
	defer release(ctx, g)

	id := n.ID
	if id == 0 {
		if id, err = s.seq.NextID(ctx, q, sequencer.TreeSequence(mode)); err != nil {
			return 0, err
		}
	} else if ok, err := s.p.exists(ctx, q, mode, id); err != nil {
		return 0, err
	} else if ok {
		return 0, treestore.NewError(treestore.InvalidOperation, "ex.tree.create.duplicateId", map[string]any{"id": id, "mode": mode.String()})
	}
	name, err := cleanName(n.Name, id)
	if err != nil {
		return 0, err
	}
	ref := n.Reference
	if ref == 0 {
		if ref, err = s.newFolder(ctx, actor, name); err != nil {
			return 0, err
		}
	} else if err := s.checkReference(ctx, actor, ref, content.Read); err != nil {
		return 0, err
	}

	position := clamp(n.Position, 0, parent.DirectChildCount)
	b, err := s.alloc.insert(ctx, q, parent, position)
	if err != nil {
		return 0, err
	}
	row := &NodeInfo{
		ID:         id,
		ParentID:   parent.ID,
		Depth:      parent.Depth + 1,
		Dirty:      mode != treestore.Live,
		Reference:  ref,
		Name:       name,
		Template:   n.Template,
		ModifiedAt: treestore.NowMillis(),
	}
	if err := s.insertRow(ctx, q, mode, row, b); err != nil {
		return 0, err
	}
	if err := s.addTotal(ctx, q, mode, chain, 1); err != nil {
		return 0, err
	}
	if err := s.addDirect(ctx, q, mode, parent.ID, 1); err != nil {
		return 0, err
	}
	return id, nil
}

// CreateNodes makes sure every segment of path exists below parentID and returns the
// id of each segment. Missing segments are created at position; "/" yields the root.
func (s *Store) CreateNodes(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, parentID int64, path string, position int) (ids []int64, err error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return []int64{treestore.RootNodeID}, nil
	}
	err = s.mutate(ctx, tx, "createNodes", modes(mode), func(q database.DBTX) error {
		ids = ids[:0]
		current := parentID
		for _, segment := range strings.Split(path, "/") {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			id, found, err := s.childByName(ctx, q, mode, current, segment)
			if err != nil {
				return err
			}
			if !found {
				if id, err = s.createNode(ctx, q, actor, mode, NewNode{ParentID: current, Name: segment, Position: position}); err != nil {
					return err
				}
			}
			ids = append(ids, id)
			current = id
		}
		return nil
	})
	return ids, err
}
