package tree

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
	"github.com/SharedCode/treestore/database"
)

// ErrNodeNotFound is wrapped by every NotFound error about a tree node.
var ErrNodeNotFound = errors.New("ex.tree.nodeNotFound")

func nodeNotFound(mode treestore.TreeMode, id int64) error {
	return treestore.Error{
		Code:     treestore.NotFound,
		Err:      ErrNodeNotFound,
		UserData: map[string]any{"id": id, "mode": mode.String()},
	}
}

// NodeInfo is the structural state of one node as read inside a mutation.
type NodeInfo struct {
	ID               int64
	ParentID         int64
	Mode             treestore.TreeMode
	Left             boundary.Number
	Right            boundary.Number
	Depth            int
	DirectChildCount int
	TotalChildCount  int
	Reference        int64
	Name             string
	Template         string
	Dirty            bool
	ModifiedAt       int64
	// Position is the index among the siblings ordered by left boundary.
	Position int
	// MaxChildRight is the largest right boundary of the direct children. It is
	// only loaded by the spreaded allocator and nil without children.
	MaxChildRight boundary.Number
}

// IsRoot reports whether n is the tree root.
func (n *NodeInfo) IsRoot() bool {
	return n.ID == treestore.RootNodeID
}

// HasChildren reports whether n has direct children.
func (n *NodeInfo) HasChildren() bool {
	return n.DirectChildCount > 0
}

// IsParentOf reports whether o lies strictly inside n, i.e. n is an ancestor of o.
func (n *NodeInfo) IsParentOf(o *NodeInfo) bool {
	return n.Left.Cmp(o.Left) < 0 && n.Right.Cmp(o.Right) > 0
}

// Node converts the info to the read model.
func (n *NodeInfo) Node() treestore.TreeNode {
	return treestore.TreeNode{
		ID:               n.ID,
		ParentID:         n.ParentID,
		Mode:             n.Mode,
		Left:             n.Left.String(),
		Right:            n.Right.String(),
		Depth:            n.Depth,
		DirectChildCount: n.DirectChildCount,
		TotalChildCount:  n.TotalChildCount,
		Reference:        n.Reference,
		Name:             n.Name,
		Dirty:            n.Dirty,
		Template:         n.Template,
		ModifiedAt:       n.ModifiedAt,
		Position:         n.Position,
	}
}

const nodeColumns = "ID, PARENT, DEPTH, LFT, RGT, DIRTY, CHILDCOUNT, TOTAL_CHILDCOUNT, REF, NAME, TEMPLATE, MODIFIED_AT"

type scanner interface {
	Scan(dest ...any) error
}

// provider reads node rows. The spreaded variant also loads MaxChildRight.
type provider struct {
	db            *database.DB
	maxChildRight bool
}

func (p *provider) bound(n boundary.Number) boundary.Valuer {
	return boundary.Valuer{Codec: p.db.Codec, Number: n}
}

func (p *provider) scan(sc scanner, mode treestore.TreeMode) (*NodeInfo, error) {
	var (
		n              NodeInfo
		parent, ref    sql.NullInt64
		name, template sql.NullString
	)
	lft := boundary.Scanner{Codec: p.db.Codec}
	rgt := boundary.Scanner{Codec: p.db.Codec}
	if err := sc.Scan(&n.ID, &parent, &n.Depth, &lft, &rgt, &n.Dirty, &n.DirectChildCount,
		&n.TotalChildCount, &ref, &name, &template, &n.ModifiedAt); err != nil {
		return nil, err
	}
	if !lft.Valid || !rgt.Valid {
		return nil, treestore.NewError(treestore.Integrity, "ex.tree.nullBoundary", n.ID)
	}
	n.Mode = mode
	n.Left, n.Right = lft.Number, rgt.Number
	n.ParentID = parent.Int64
	n.Reference = ref.Int64
	n.Name = name.String
	n.Template = template.String
	return &n, nil
}

// info loads the node including its sibling position.
func (p *provider) info(ctx context.Context, q database.DBTX, mode treestore.TreeMode, id int64) (*NodeInfo, error) {
	table := database.TreeTable(mode)
	n, err := p.scan(q.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM "+table+" WHERE ID=?", id), mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nodeNotFound(mode, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load node %d (%s): %w", id, mode, err)
	}
	if !n.IsRoot() {
		if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE PARENT=? AND LFT<?",
			n.ParentID, p.bound(n.Left)).Scan(&n.Position); err != nil {
			return nil, fmt.Errorf("load position of node %d: %w", id, err)
		}
	}
	if p.maxChildRight && n.HasChildren() {
		m := boundary.Scanner{Codec: p.db.Codec}
		if err := q.QueryRowContext(ctx, "SELECT MAX(RGT) FROM "+table+" WHERE PARENT=?", id).Scan(&m); err != nil {
			return nil, fmt.Errorf("load max child boundary of node %d: %w", id, err)
		}
		if m.Valid {
			n.MaxChildRight = m.Number
		}
	}
	return n, nil
}

// list runs a query selecting nodeColumns and returns the rows in result order.
func (p *provider) list(ctx context.Context, q database.DBTX, mode treestore.TreeMode, query string, args ...any) ([]*NodeInfo, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var r []*NodeInfo
	for rows.Next() {
		n, err := p.scan(rows, mode)
		if err != nil {
			return nil, err
		}
		r = append(r, n)
	}
	return r, rows.Err()
}

// subtree returns n and all its descendants ordered by left boundary.
func (p *provider) subtree(ctx context.Context, q database.DBTX, n *NodeInfo) ([]*NodeInfo, error) {
	return p.list(ctx, q, n.Mode, "SELECT "+nodeColumns+" FROM "+database.TreeTable(n.Mode)+
		" WHERE LFT>=? AND RGT<=? ORDER BY LFT", p.bound(n.Left), p.bound(n.Right))
}

// descendants returns the nodes strictly inside n ordered by left boundary.
func (p *provider) descendants(ctx context.Context, q database.DBTX, n *NodeInfo) ([]*NodeInfo, error) {
	return p.list(ctx, q, n.Mode, "SELECT "+nodeColumns+" FROM "+database.TreeTable(n.Mode)+
		" WHERE LFT>? AND RGT<? ORDER BY LFT", p.bound(n.Left), p.bound(n.Right))
}

func (p *provider) exists(ctx context.Context, q database.DBTX, mode treestore.TreeMode, id int64) (bool, error) {
	var c int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+database.TreeTable(mode)+" WHERE ID=?", id).Scan(&c); err != nil {
		return false, err
	}
	return c > 0, nil
}

// idChain returns the ids from the root down to id, both included.
func (p *provider) idChain(ctx context.Context, q database.DBTX, mode treestore.TreeMode, id int64) ([]int64, error) {
	n, err := p.info(ctx, q, mode, id)
	if err != nil {
		return nil, err
	}
	return p.ancestorIDs(ctx, q, n, true)
}

func (p *provider) ancestorIDs(ctx context.Context, q database.DBTX, n *NodeInfo, includeSelf bool) ([]int64, error) {
	ids, err := p.int64s(ctx, q, "SELECT ID FROM "+database.TreeTable(n.Mode)+
		" WHERE LFT<? AND RGT>? ORDER BY LFT", p.bound(n.Left), p.bound(n.Right))
	if err != nil {
		return nil, err
	}
	if includeSelf {
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// directChildIDs returns the children of parent ordered by left boundary.
func (p *provider) directChildIDs(ctx context.Context, q database.DBTX, mode treestore.TreeMode, parent int64) ([]int64, error) {
	return p.int64s(ctx, q, "SELECT ID FROM "+database.TreeTable(mode)+" WHERE PARENT=? ORDER BY LFT", parent)
}

func (p *provider) int64s(ctx context.Context, q database.DBTX, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
