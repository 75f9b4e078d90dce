package tree

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database/dbtest"
	"github.com/SharedCode/treestore/hooks"
	"github.com/SharedCode/treestore/lock"
	"github.com/SharedCode/treestore/metrics"
)

var (
	alice      = treestore.ActorContext{UserID: 10, Name: "alice"}
	bob        = treestore.ActorContext{UserID: 11, Name: "bob"}
	supervisor = treestore.ActorContext{UserID: 12, Name: "admin", GlobalSupervisor: true}
)

var strategies = []treestore.Strategy{treestore.Simple, treestore.Spreaded}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *Store
	content *content.MemoryStore
	perms   *content.RulePermissions
	locks   *lock.Manager
	hooks   *hooks.Registry
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, strategy treestore.Strategy) *fixture {
	return newFixtureWithOptions(t, treestore.Options{Strategy: strategy})
}

// newFixtureWithOptions opens a store that checks the tree after every mutation.
func newFixtureWithOptions(t *testing.T, options treestore.Options) *fixture {
	t.Helper()
	options.CheckTreeAfterMutation = true
	db := dbtest.OpenWithOptions(t, options)
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		content: content.NewMemoryStore(),
		perms:   content.NewRulePermissions(),
		hooks:   hooks.NewRegistry(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.locks = lock.NewManager(db, f.content, f.perms)
	s, err := New(db, Config{
		Content:     f.content,
		Permissions: f.perms,
		Locks:       f.locks,
		Hooks:       f.hooks,
		Observer:    f.metrics,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.store = s
	if err := s.EnsureRoots(f.ctx, nil, treestore.System()); err != nil {
		t.Fatalf("create roots: %v", err)
	}
	return f
}

func (f *fixture) create(mode treestore.TreeMode, parent int64, name string, position int) int64 {
	f.t.Helper()
	id, err := f.store.CreateNode(f.ctx, nil, alice, mode, NewNode{ParentID: parent, Name: name, Position: position})
	if err != nil {
		f.t.Fatalf("create %s under %d: %v", name, parent, err)
	}
	return id
}

func (f *fixture) info(mode treestore.TreeMode, id int64) *NodeInfo {
	f.t.Helper()
	n, err := f.store.Info(f.ctx, nil, mode, id)
	if err != nil {
		f.t.Fatalf("load node %d: %v", id, err)
	}
	return n
}

// children returns the names of the direct children of id in boundary order.
func (f *fixture) children(mode treestore.TreeMode, id int64) []string {
	f.t.Helper()
	tree, err := f.store.GetTree(f.ctx, nil, mode, id, 1)
	if err != nil {
		f.t.Fatalf("read tree %d: %v", id, err)
	}
	names := []string{}
	for _, c := range tree.Children {
		names = append(names, c.Name)
	}
	return names
}

// flatten returns "depth:name" of every node below id in boundary order.
func (f *fixture) flatten(mode treestore.TreeMode, id int64) []string {
	f.t.Helper()
	tree, err := f.store.GetTree(f.ctx, nil, mode, id, 0)
	if err != nil {
		f.t.Fatalf("read tree %d: %v", id, err)
	}
	var out []string
	var walk func(n *treestore.TreeNode)
	walk = func(n *treestore.TreeNode) {
		out = append(out, fmt.Sprintf("%d:%s", n.Depth, n.Name))
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree)
	return out
}

func (f *fixture) verify() {
	f.t.Helper()
	if err := f.store.Verify(f.ctx); err != nil {
		f.t.Fatalf("tree check failed: %v", err)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
