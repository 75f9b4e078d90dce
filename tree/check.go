package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// maxReportedProblems caps the problems listed in one integrity error.
const maxReportedProblems = 20

// CheckTree verifies the nested set invariants of mode: every interval lies inside
// its parent's, depths follow parents, and both child counters match the rows.
func (s *Store) CheckTree(ctx context.Context, tx database.DBTX, mode treestore.TreeMode) error {
	return s.checkTree(ctx, s.conn(tx), mode)
}

// Verify checks the Edit and the Live tree concurrently.
func (s *Store) Verify(ctx context.Context) error {
	return treestore.RunConcurrently(ctx, 2,
		func(ctx context.Context) error { return s.checkTree(ctx, s.db.DB, treestore.Edit) },
		func(ctx context.Context) error { return s.checkTree(ctx, s.db.DB, treestore.Live) },
	)
}

func (s *Store) checkTree(ctx context.Context, q database.DBTX, mode treestore.TreeMode) error {
	rows, err := s.p.list(ctx, q, mode, "SELECT "+nodeColumns+" FROM "+database.TreeTable(mode)+" ORDER BY LFT")
	if err != nil {
		return err
	}
	var problems []error
	report := func(format string, args ...any) {
		if len(problems) < maxReportedProblems {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}
	if len(rows) == 0 {
		return nil
	}
	direct := make(map[int64]int, len(rows))
	total := make(map[int64]int, len(rows))
	var open []*NodeInfo
	for i, r := range rows {
		if r.Left.Cmp(r.Right) >= 0 {
			report("node %d: left %s not below right %s", r.ID, r.Left, r.Right)
		}
		for len(open) > 0 && open[len(open)-1].Right.Cmp(r.Left) < 0 {
			open = open[:len(open)-1]
		}
		if len(open) == 0 {
			if i > 0 || !r.IsRoot() || r.ParentID != 0 {
				report("node %d lies outside the root", r.ID)
			}
			open = append(open, r)
			continue
		}
		parent := open[len(open)-1]
		if r.Right.Cmp(parent.Right) >= 0 {
			report("node %d [%s, %s] overlaps %d [%s, %s]", r.ID, r.Left, r.Right, parent.ID, parent.Left, parent.Right)
		}
		if r.ParentID != parent.ID {
			report("node %d has parent %d but lies directly inside %d", r.ID, r.ParentID, parent.ID)
		}
		if r.Depth != parent.Depth+1 {
			report("node %d has depth %d, parent %d has depth %d", r.ID, r.Depth, parent.ID, parent.Depth)
		}
		direct[r.ParentID]++
		for _, o := range open {
			total[o.ID]++
		}
		open = append(open, r)
	}
	for _, r := range rows {
		if r.DirectChildCount != direct[r.ID] {
			report("node %d has child count %d, actual %d", r.ID, r.DirectChildCount, direct[r.ID])
		}
		if r.TotalChildCount != total[r.ID] {
			report("node %d has total child count %d, actual %d", r.ID, r.TotalChildCount, total[r.ID])
		}
		if r.DirectChildCount > r.TotalChildCount {
			report("node %d has more direct children than descendants", r.ID)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return treestore.Error{
		Code:     treestore.Integrity,
		Err:      errors.Join(problems...),
		UserData: map[string]any{"mode": mode.String(), "nodes": len(rows)},
	}
}
