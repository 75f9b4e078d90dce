package tree

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// GetNode returns one node.
func (s *Store) GetNode(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) (treestore.TreeNode, error) {
	n, err := s.p.info(ctx, s.conn(tx), mode, id)
	if err != nil {
		return treestore.TreeNode{}, err
	}
	return n.Node(), nil
}

// GetTree returns id with its descendants nested and ordered by boundary. depth limits
// the levels below id; zero or less returns the whole subtree.
func (s *Store) GetTree(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64, depth int) (*treestore.TreeNode, error) {
	q := s.conn(tx)
	root, err := s.p.info(ctx, q, mode, id)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + nodeColumns + " FROM " + database.TreeTable(mode) + " WHERE LFT>? AND RGT<?"
	args := []any{s.bound(root.Left), s.bound(root.Right)}
	if depth > 0 {
		query += " AND DEPTH<=?"
		args = append(args, root.Depth+depth)
	}
	rows, err := s.p.list(ctx, q, mode, query+" ORDER BY LFT", args...)
	if err != nil {
		return nil, err
	}
	top := root.Node()
	byID := map[int64]*treestore.TreeNode{top.ID: &top}
	for _, r := range rows {
		parent, ok := byID[r.ParentID]
		if !ok {
			return nil, treestore.NewError(treestore.Integrity, "ex.tree.read.orphan", r.ID)
		}
		n := r.Node()
		n.Position = len(parent.Children)
		parent.Children = append(parent.Children, &n)
		byID[n.ID] = &n
	}
	return &top, nil
}

// GetNodesWithReference returns the ids of nodes referencing content ref.
func (s *Store) GetNodesWithReference(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, ref int64) ([]int64, error) {
	return s.nodesWithReference(ctx, s.conn(tx), mode, ref)
}

func (s *Store) nodesWithReference(ctx context.Context, q database.DBTX, mode treestore.TreeMode, ref int64) ([]int64, error) {
	return s.p.int64s(ctx, q, "SELECT ID FROM "+database.TreeTable(mode)+" WHERE REF=? ORDER BY LFT", ref)
}

func (s *Store) childByName(ctx context.Context, q database.DBTX, mode treestore.TreeMode, parent int64, name string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, "SELECT ID FROM "+database.TreeTable(mode)+" WHERE PARENT=? AND NAME=? ORDER BY LFT LIMIT 1", parent, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// GetIDByPath resolves a '/' separated path of names below start.
func (s *Store) GetIDByPath(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, start int64, path string) (int64, error) {
	q := s.conn(tx)
	if ok, err := s.p.exists(ctx, q, mode, start); err != nil {
		return 0, err
	} else if !ok {
		return 0, nodeNotFound(mode, start)
	}
	current := start
	for _, segment := range strings.Split(path, "/") {
		if segment = strings.TrimSpace(segment); segment == "" {
			continue
		}
		id, found, err := s.childByName(ctx, q, mode, current, segment)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, treestore.Error{
				Code:     treestore.NotFound,
				Err:      ErrNodeNotFound,
				UserData: map[string]any{"path": path, "segment": segment, "mode": mode.String()},
			}
		}
		current = id
	}
	return current, nil
}

// GetPathByID returns the names from below the root down to id joined by '/'. The
// root's path is "/".
func (s *Store) GetPathByID(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) (string, error) {
	q := s.conn(tx)
	n, err := s.p.info(ctx, q, mode, id)
	if err != nil {
		return "", err
	}
	rows, err := s.p.list(ctx, q, mode, "SELECT "+nodeColumns+" FROM "+database.TreeTable(mode)+
		" WHERE LFT<=? AND RGT>=? AND ID<>? ORDER BY LFT", s.bound(n.Left), s.bound(n.Right), treestore.RootNodeID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString("/")
		sb.WriteString(r.Name)
	}
	if sb.Len() == 0 {
		return "/", nil
	}
	return sb.String(), nil
}

// GetIDChain returns the ids from the root down to id.
func (s *Store) GetIDChain(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) ([]int64, error) {
	return s.p.idChain(ctx, s.conn(tx), mode, id)
}

// Exists reports whether id is a node of mode.
func (s *Store) Exists(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) (bool, error) {
	return s.p.exists(ctx, s.conn(tx), mode, id)
}

// ChildIDs returns all descendants of id ordered by boundary.
func (s *Store) ChildIDs(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) ([]int64, error) {
	q := s.conn(tx)
	n, err := s.p.info(ctx, q, mode, id)
	if err != nil {
		return nil, err
	}
	return s.p.int64s(ctx, q, "SELECT ID FROM "+database.TreeTable(mode)+" WHERE LFT>? AND RGT<? ORDER BY LFT",
		s.bound(n.Left), s.bound(n.Right))
}

// DirectChildIDs returns the children of id ordered by boundary.
func (s *Store) DirectChildIDs(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) ([]int64, error) {
	return s.p.directChildIDs(ctx, s.conn(tx), mode, id)
}

// Info returns the structural state of id; the spreaded strategy fills MaxChildRight.
func (s *Store) Info(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64) (*NodeInfo, error) {
	return s.p.info(ctx, s.conn(tx), mode, id)
}
