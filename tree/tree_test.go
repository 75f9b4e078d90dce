package tree

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/hooks"
	"github.com/SharedCode/treestore/lock"
)

const root = treestore.RootNodeID

func TestCreateThenRemoveKeepsOrder(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "A", 0)
			f.create(treestore.Edit, root, "B", 0)
			if got := f.children(treestore.Edit, root); !equal(got, []string{"B", "A"}) {
				t.Fatalf("expected [B A], got %v", got)
			}
			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, a, false); err != nil {
				t.Fatal(err)
			}
			r := f.info(treestore.Edit, root)
			if r.DirectChildCount != 1 || r.TotalChildCount != 1 {
				t.Errorf("expected one child left, got direct %d total %d", r.DirectChildCount, r.TotalChildCount)
			}
			b, err := f.store.GetIDByPath(f.ctx, nil, treestore.Edit, root, "/B")
			if err != nil {
				t.Fatal(err)
			}
			if n := f.info(treestore.Edit, b); n.Position != 0 {
				t.Errorf("expected B at position 0, got %d", n.Position)
			}
			if v := testutil.ToFloat64(f.metrics.Mutations.WithLabelValues("createNode", "edit", "ok")); v != 2 {
				t.Errorf("expected 2 creations counted, got %v", v)
			}
		})
	}
}

func boundsOf(n *NodeInfo) string {
	s := fmt.Sprintf("%s-%s/%d/%d", n.Left, n.Right, n.DirectChildCount, n.TotalChildCount)
	if n.MaxChildRight != nil {
		s += "/" + n.MaxChildRight.String()
	}
	return s
}

func TestCreateRemoveRoundTrip(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			f.create(treestore.Edit, a, "x", 0)
			f.create(treestore.Edit, root, "b", 1)
			beforeRoot, beforeA := boundsOf(f.info(treestore.Edit, root)), boundsOf(f.info(treestore.Edit, a))

			tmp := f.create(treestore.Edit, a, "tmp", 1)
			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, tmp, false); err != nil {
				t.Fatal(err)
			}
			if got := boundsOf(f.info(treestore.Edit, root)); got != beforeRoot {
				t.Errorf("root changed from %s to %s", beforeRoot, got)
			}
			if got := boundsOf(f.info(treestore.Edit, a)); got != beforeA {
				t.Errorf("parent changed from %s to %s", beforeA, got)
			}
		})
	}
}

func TestExplicitPositionsAreKept(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			parent := f.create(treestore.Edit, root, "parent", 0)
			rng := rand.New(rand.NewSource(7))
			var expected []string
			for i := 0; i < 30; i++ {
				pos := rng.Intn(len(expected) + 1)
				name := "n" + strconv.Itoa(i)
				f.create(treestore.Edit, parent, name, pos)
				expected = append(expected[:pos], append([]string{name}, expected[pos:]...)...)
			}
			if got := f.children(treestore.Edit, parent); !equal(got, expected) {
				t.Fatalf("order mismatch\nwant %v\ngot  %v", expected, got)
			}
			// Out of range positions append.
			f.create(treestore.Edit, parent, "last", 1000)
			f.create(treestore.Edit, parent, "first", -5)
			got := f.children(treestore.Edit, parent)
			if got[0] != "first" || got[len(got)-1] != "last" {
				t.Errorf("clamped positions misplaced: %v", got)
			}
		})
	}
}

func TestMoveToCurrentPositionWritesNothing(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, root, "b", 1)
			f.create(treestore.Edit, b, "c", 0)
			if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
				t.Fatal(err)
			}
			before, err := f.store.GetTree(f.ctx, nil, treestore.Edit, root, 0)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, b, root, 1); err != nil {
				t.Fatal(err)
			}
			if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, a, root, 0); err != nil {
				t.Fatal(err)
			}
			after, err := f.store.GetTree(f.ctx, nil, treestore.Edit, root, 0)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(before, after) {
				t.Errorf("no-op move changed the tree")
			}
		})
	}
}

func TestMoveIntoOwnSubtreeIsRejected(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, a, "b", 0)
			c := f.create(treestore.Edit, b, "c", 0)
			before := f.flatten(treestore.Edit, root)
			for _, dest := range []int64{a, b, c} {
				err := f.store.Move(f.ctx, nil, alice, treestore.Edit, a, dest, 0)
				if !treestore.IsCode(err, treestore.InvalidOperation) {
					t.Errorf("move under %d: expected invalid operation, got %v", dest, err)
				}
			}
			if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, root, a, 0); !treestore.IsCode(err, treestore.InvalidOperation) {
				t.Errorf("moving the root: expected invalid operation, got %v", err)
			}
			if got := f.flatten(treestore.Edit, root); !equal(got, before) {
				t.Errorf("tree changed: %v", got)
			}
		})
	}
}

func TestMoveReordersAndReparents(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, root, "b", 1)
			c := f.create(treestore.Edit, root, "c", 2)
			steps := []struct {
				id       int64
				position int
				want     []string
			}{
				{a, 2, []string{"b", "c", "a"}},
				{a, 0, []string{"a", "b", "c"}},
				{c, 1, []string{"a", "c", "b"}},
				{b, 0, []string{"b", "a", "c"}},
			}
			for _, s := range steps {
				if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, s.id, root, s.position); err != nil {
					t.Fatal(err)
				}
				if got := f.children(treestore.Edit, root); !equal(got, s.want) {
					t.Fatalf("move %d to %d: want %v, got %v", s.id, s.position, s.want, got)
				}
			}

			x := f.create(treestore.Edit, a, "x", 0)
			y := f.create(treestore.Edit, a, "y", 1)
			f.create(treestore.Edit, y, "z", 0)
			if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, y, b, 0); err != nil {
				t.Fatal(err)
			}
			if got := f.children(treestore.Edit, a); !equal(got, []string{"x"}) {
				t.Errorf("a children: %v", got)
			}
			if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, b, x, 0); err != nil {
				t.Fatal(err)
			}
			want := []string{"1:Root", "2:a", "3:x", "4:b", "5:y", "6:z", "2:c"}
			if got := f.flatten(treestore.Edit, root); !equal(got, want) {
				t.Errorf("want %v, got %v", want, got)
			}
			if n := f.info(treestore.Edit, a); n.TotalChildCount != 4 || n.DirectChildCount != 1 {
				t.Errorf("a counters: direct %d total %d", n.DirectChildCount, n.TotalChildCount)
			}
		})
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	cases := []treestore.Options{
		{Strategy: treestore.Simple},
		{Strategy: treestore.Spreaded},
		{Strategy: treestore.Spreaded, MaxRight: "10000000"},
	}
	for _, options := range cases {
		t.Run(string(options.Strategy)+options.MaxRight, func(t *testing.T) {
			f := newFixtureWithOptions(t, options)
			rng := rand.New(rand.NewSource(42))
			ids := []int64{root}
			pick := func() int64 { return ids[rng.Intn(len(ids))] }
			for i := 0; i < 150; i++ {
				var err error
				switch op := rng.Intn(10); {
				case op < 5 && len(ids) < 150:
					_, err = f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: pick(), Name: strconv.Itoa(i), Position: rng.Intn(4)})
				case op < 7:
					err = f.store.Move(f.ctx, nil, alice, treestore.Edit, pick(), pick(), rng.Intn(4))
					if treestore.IsCode(err, treestore.InvalidOperation) {
						err = nil
					}
				case op < 8 && len(ids) < 150:
					if src := pick(); f.info(treestore.Edit, src).TotalChildCount < 10 {
						_, err = f.store.Copy(f.ctx, nil, alice, treestore.Edit, src, pick(), rng.Intn(4))
					}
				default:
					if id := pick(); id != root {
						err = f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, id, rng.Intn(2) == 0)
					}
				}
				if err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				children, err := f.store.ChildIDs(f.ctx, nil, treestore.Edit, root)
				if err != nil {
					t.Fatal(err)
				}
				ids = append([]int64{root}, children...)
			}
			f.verify()
		})
	}
}

func TestCopySubtree(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, a, "b", 0)
			f.create(treestore.Edit, a, "c", 1)
			d := f.create(treestore.Edit, root, "d", 1)

			cp, err := f.store.Copy(f.ctx, nil, alice, treestore.Edit, a, d, 0)
			if err != nil {
				t.Fatal(err)
			}
			if cp == a {
				t.Fatalf("copy reused the source id")
			}
			want := []string{"3:a", "4:b", "4:c"}
			if got := f.flatten(treestore.Edit, cp); !equal(got, want) {
				t.Errorf("copy: want %v, got %v", want, got)
			}
			if n := f.info(treestore.Edit, root); n.TotalChildCount != 7 {
				t.Errorf("root total %d, want 7", n.TotalChildCount)
			}

			// Into its own subtree.
			if _, err := f.store.Copy(f.ctx, nil, alice, treestore.Edit, a, b, 0); err != nil {
				t.Fatal(err)
			}
			want = []string{"2:a", "3:b", "4:a", "5:b", "5:c", "3:c"}
			if got := f.flatten(treestore.Edit, a); !equal(got, want) {
				t.Errorf("self copy: want %v, got %v", want, got)
			}
		})
	}
}

func TestRemoveNode(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			var removed []int64
			f.hooks.Register(hooks.BeforeNodeRemoved, hooks.Func("collect", func(ctx context.Context, e hooks.Event) error {
				removed = append(removed, e.Node.ID)
				return nil
			}))
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, a, "b", 0)
			f.create(treestore.Edit, b, "c", 0)
			f.create(treestore.Edit, a, "d", 1)
			e := f.create(treestore.Edit, root, "e", 1)
			f.create(treestore.Edit, e, "f", 0)

			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, a, false); err != nil {
				t.Fatal(err)
			}
			want := []string{"1:Root", "2:b", "3:c", "2:d", "2:e", "3:f"}
			if got := f.flatten(treestore.Edit, root); !equal(got, want) {
				t.Errorf("promotion: want %v, got %v", want, got)
			}
			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, e, true); err != nil {
				t.Fatal(err)
			}
			want = []string{"1:Root", "2:b", "3:c", "2:d"}
			if got := f.flatten(treestore.Edit, root); !equal(got, want) {
				t.Errorf("subtree removal: want %v, got %v", want, got)
			}
			if len(removed) != 3 {
				t.Errorf("expected 3 before-removal hooks, got %v", removed)
			}
			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, root, true); !treestore.IsCode(err, treestore.InvalidOperation) {
				t.Errorf("removing the root: expected invalid operation, got %v", err)
			}
			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, 9999, true); !treestore.IsCode(err, treestore.NotFound) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	}
}

func TestLiveRemovalTakesChildren(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, a, "b", 0)
			if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
				t.Fatal(err)
			}
			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Live, a, false); err != nil {
				t.Fatal(err)
			}
			if ok, _ := f.store.Exists(f.ctx, nil, treestore.Live, b); ok {
				t.Errorf("live child survived removal of its parent")
			}
			if !f.info(treestore.Edit, a).Dirty || !f.info(treestore.Edit, b).Dirty {
				t.Errorf("edit counterparts of removed live nodes must be dirty")
			}
		})
	}
}

func TestActivation(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			b := f.create(treestore.Edit, a, "b", 0)
			c := f.create(treestore.Edit, root, "c", 1)

			if err := f.store.ActivateNode(f.ctx, nil, alice, b); err != nil {
				t.Fatal(err)
			}
			if got := f.flatten(treestore.Live, root); !equal(got, []string{"1:Root", "2:a", "3:b"}) {
				t.Errorf("after activating b: %v", got)
			}
			if f.info(treestore.Edit, b).Dirty || !f.info(treestore.Edit, a).Dirty {
				t.Errorf("only the activated node is clean")
			}

			if err := f.store.ActivateNode(f.ctx, nil, alice, c); err != nil {
				t.Fatal(err)
			}
			if got := f.children(treestore.Live, root); !equal(got, []string{"a", "c"}) {
				t.Errorf("live order: %v", got)
			}

			if err := f.store.UpdateName(f.ctx, nil, alice, treestore.Edit, b, "b2"); err != nil {
				t.Fatal(err)
			}
			d := f.create(treestore.Edit, a, "d", 0)
			if err := f.store.ActivateSubtree(f.ctx, nil, alice, a); err != nil {
				t.Fatal(err)
			}
			if got := f.children(treestore.Live, a); !equal(got, []string{"d", "b2"}) {
				t.Errorf("live subtree: %v", got)
			}
			for _, id := range []int64{a, b, d} {
				if f.info(treestore.Edit, id).Dirty {
					t.Errorf("node %d still dirty", id)
				}
			}

			if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, d, true); err != nil {
				t.Fatal(err)
			}
			if err := f.store.ActivateSubtree(f.ctx, nil, alice, a); err != nil {
				t.Fatal(err)
			}
			if ok, _ := f.store.Exists(f.ctx, nil, treestore.Live, d); ok {
				t.Errorf("node removed in edit is still live")
			}

			f.create(treestore.Edit, c, "e", 0)
			if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
				t.Fatal(err)
			}
			if edit, live := f.flatten(treestore.Edit, root), f.flatten(treestore.Live, root); !equal(edit, live) {
				t.Errorf("trees differ after activating everything\nedit %v\nlive %v", edit, live)
			}
			tree, err := f.store.GetTree(f.ctx, nil, treestore.Edit, root, 0)
			if err != nil {
				t.Fatal(err)
			}
			var walk func(n *treestore.TreeNode)
			walk = func(n *treestore.TreeNode) {
				if n.Dirty {
					t.Errorf("node %d dirty after activating everything", n.ID)
				}
				for _, c := range n.Children {
					walk(c)
				}
			}
			walk(tree)
			f.verify()
		})
	}
}

func TestContentRemoved(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			pk, err := f.content.Save(f.ctx, content.Content{TypeName: "ARTICLE", Name: "doc"})
			if err != nil {
				t.Fatal(err)
			}
			leaf, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Name: "leaf", Reference: pk.ID})
			if err != nil {
				t.Fatal(err)
			}
			inner, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Name: "inner", Reference: pk.ID, Position: 1})
			if err != nil {
				t.Fatal(err)
			}
			f.create(treestore.Edit, inner, "child", 0)
			if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
				t.Fatal(err)
			}
			var replaced []hooks.Event
			f.hooks.Register(hooks.AfterFolderReplacement, hooks.Func("collect", func(ctx context.Context, e hooks.Event) error {
				replaced = append(replaced, e)
				return nil
			}))

			removed, err := f.content.Load(f.ctx, pk)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.content.Remove(f.ctx, pk.ID); err != nil {
				t.Fatal(err)
			}
			if err := f.store.ContentRemoved(f.ctx, nil, alice, removed, false); err != nil {
				t.Fatal(err)
			}
			for _, mode := range []treestore.TreeMode{treestore.Edit, treestore.Live} {
				if ok, _ := f.store.Exists(f.ctx, nil, mode, leaf); ok {
					t.Errorf("%s: leaf referencing removed content survived", mode)
				}
				n := f.info(mode, inner)
				if n.Reference == pk.ID {
					t.Errorf("%s: inner node still references removed content", mode)
				}
				c, err := f.content.Load(f.ctx, treestore.PK{ID: n.Reference, Version: treestore.MaxVersion})
				if err != nil || !c.IsFolder() {
					t.Errorf("%s: replacement is not a folder: %v %v", mode, c, err)
				}
			}
			if len(replaced) != 2 || replaced[0].OldReference != pk.ID || replaced[0].NewReference != replaced[1].NewReference {
				t.Errorf("unexpected replacement events %+v", replaced)
			}
			if ids, _ := f.store.GetNodesWithReference(f.ctx, nil, treestore.Edit, pk.ID); len(ids) != 0 {
				t.Errorf("nodes still reference removed content: %v", ids)
			}
		})
	}
}

func TestFolderContentRemovedAfterDeletion(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			folder, err := f.content.Save(f.ctx, content.Content{TypeName: content.FolderType, Name: "dir"})
			if err != nil {
				t.Fatal(err)
			}
			dir, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Name: "dir", Reference: folder.ID})
			if err != nil {
				t.Fatal(err)
			}
			x := f.create(treestore.Edit, dir, "x", 0)
			if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
				t.Fatal(err)
			}
			removed, err := f.content.Load(f.ctx, folder)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.content.Remove(f.ctx, folder.ID); err != nil {
				t.Fatal(err)
			}
			if err := f.store.ContentRemoved(f.ctx, nil, alice, removed, false); err != nil {
				t.Fatal(err)
			}
			if ok, _ := f.store.Exists(f.ctx, nil, treestore.Edit, dir); ok {
				t.Error("edit folder node survived")
			}
			if n := f.info(treestore.Edit, x); n.ParentID != root || n.Depth != 2 {
				t.Errorf("edit child not promoted: parent %d depth %d", n.ParentID, n.Depth)
			}
			for _, id := range []int64{dir, x} {
				if ok, _ := f.store.Exists(f.ctx, nil, treestore.Live, id); ok {
					t.Errorf("live node %d survived folder removal", id)
				}
			}
			f.verify()
		})
	}
}

func TestClearTree(t *testing.T) {
	for _, strategy := range strategies {
		t.Run(string(strategy), func(t *testing.T) {
			f := newFixture(t, strategy)
			a := f.create(treestore.Edit, root, "a", 0)
			f.create(treestore.Edit, a, "b", 0)
			if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
				t.Fatal(err)
			}
			if err := f.store.ClearTree(f.ctx, nil, alice, treestore.Live); err != nil {
				t.Fatal(err)
			}
			if got := f.flatten(treestore.Live, root); !equal(got, []string{"1:Root"}) {
				t.Errorf("live after clear: %v", got)
			}
			if !f.info(treestore.Edit, a).Dirty || f.info(treestore.Edit, root).Dirty {
				t.Errorf("clearing live must mark every edit node but the root dirty")
			}
			folders := f.content.Count()
			if err := f.store.ClearTree(f.ctx, nil, alice, treestore.Edit); err != nil {
				t.Fatal(err)
			}
			if f.content.Count() != folders-2 {
				t.Errorf("expected the two folder placeholders removed, %d -> %d", folders, f.content.Count())
			}
			if id := f.create(treestore.Edit, root, "fresh", 0); id != 2 {
				t.Errorf("expected sequence reset, got id %d", id)
			}
		})
	}
}

func TestNamesAndData(t *testing.T) {
	f := newFixture(t, treestore.Spreaded)
	id, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Name: "  "})
	if err != nil {
		t.Fatal(err)
	}
	if n := f.info(treestore.Edit, id); n.Name != strconv.FormatInt(id, 10) {
		t.Errorf("empty name should default to the id, got %q", n.Name)
	}
	if _, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Name: "a/b"}); !treestore.IsCode(err, treestore.InvalidOperation) {
		t.Errorf("expected invalid name, got %v", err)
	}
	if err := f.store.SetData(f.ctx, nil, alice, treestore.Edit, id, "a,b"); !treestore.IsCode(err, treestore.InvalidOperation) {
		t.Errorf("expected invalid data, got %v", err)
	}
	if err := f.store.ActivateAll(f.ctx, nil, alice); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SetData(f.ctx, nil, alice, treestore.Edit, id, "tpl"); err != nil {
		t.Fatal(err)
	}
	if n := f.info(treestore.Edit, id); n.Template != "tpl" || !n.Dirty {
		t.Errorf("set data: %+v", n)
	}
	if err := f.store.UpdateName(f.ctx, nil, alice, treestore.Live, id, " renamed "); err != nil {
		t.Fatal(err)
	}
	if n := f.info(treestore.Live, id); n.Name != "renamed" || n.Dirty {
		t.Errorf("live rename: %+v", n)
	}
	pk, _ := f.content.Save(f.ctx, content.Content{TypeName: "ARTICLE"})
	if err := f.store.UpdateReference(f.ctx, nil, alice, treestore.Edit, id, pk.ID); err != nil {
		t.Fatal(err)
	}
	if n := f.info(treestore.Edit, id); n.Reference != pk.ID {
		t.Errorf("reference not updated: %d", n.Reference)
	}
}

func TestPaths(t *testing.T) {
	f := newFixture(t, treestore.Simple)
	ids, err := f.store.CreateNodes(f.ctx, nil, alice, treestore.Edit, root, "/docs//guides/intro/", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 segments, got %v", ids)
	}
	again, err := f.store.CreateNodes(f.ctx, nil, alice, treestore.Edit, root, "docs/guides/setup", 0)
	if err != nil {
		t.Fatal(err)
	}
	if again[0] != ids[0] || again[1] != ids[1] || again[2] == ids[2] {
		t.Errorf("existing segments must be reused: %v %v", ids, again)
	}
	path, err := f.store.GetPathByID(f.ctx, nil, treestore.Edit, ids[2])
	if err != nil || path != "/docs/guides/intro" {
		t.Errorf("path %q %v", path, err)
	}
	id, err := f.store.GetIDByPath(f.ctx, nil, treestore.Edit, root, path)
	if err != nil || id != ids[2] {
		t.Errorf("lookup %d %v", id, err)
	}
	if _, err := f.store.GetIDByPath(f.ctx, nil, treestore.Edit, root, "/docs/missing"); !treestore.IsCode(err, treestore.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if p, _ := f.store.GetPathByID(f.ctx, nil, treestore.Edit, root); p != "/" {
		t.Errorf("root path %q", p)
	}
	chain, err := f.store.GetIDChain(f.ctx, nil, treestore.Edit, ids[2])
	if err != nil || !reflect.DeepEqual(chain, append([]int64{root}, ids...)) {
		t.Errorf("chain %v %v", chain, err)
	}
	if rootIDs, _ := f.store.CreateNodes(f.ctx, nil, alice, treestore.Edit, root, "/", 0); len(rootIDs) != 1 || rootIDs[0] != root {
		t.Errorf("root path should yield the root, got %v", rootIDs)
	}
}

func TestPermanentLockDeniesOtherUsers(t *testing.T) {
	f := newFixture(t, treestore.Spreaded)
	a := f.create(treestore.Edit, root, "a", 0)
	if _, err := f.locks.Lock(f.ctx, nil, bob, lock.Permanent, lock.NodeTarget(treestore.Edit, a)); err != nil {
		t.Fatal(err)
	}
	_, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: a, Name: "x"})
	if !treestore.IsCode(err, treestore.Denied) {
		t.Fatalf("expected denied, got %v", err)
	}
	if _, err := f.store.CreateNode(f.ctx, nil, bob, treestore.Edit, NewNode{ParentID: a, Name: "x"}); err != nil {
		t.Fatalf("holder must pass: %v", err)
	}
	if _, err := f.store.CreateNode(f.ctx, nil, supervisor, treestore.Edit, NewNode{ParentID: a, Name: "y"}); err != nil {
		t.Fatalf("supervisor must pass: %v", err)
	}
	locks, err := f.locks.ListLocks(f.ctx, nil, supervisor, lock.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(locks) != 1 {
		t.Errorf("transient guard locks leaked: %v", locks)
	}
}

func TestRemovalChecksEditPermission(t *testing.T) {
	f := newFixture(t, treestore.Simple)
	pk, _ := f.content.Save(f.ctx, content.Content{TypeName: "ARTICLE"})
	id, err := f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Reference: pk.ID})
	if err != nil {
		t.Fatal(err)
	}
	f.perms.Deny(alice.UserID, content.Edit)
	if err := f.store.RemoveNode(f.ctx, nil, alice, treestore.Edit, id, true); !treestore.IsCode(err, treestore.Denied) {
		t.Fatalf("expected denied, got %v", err)
	}
	if ok, _ := f.store.Exists(f.ctx, nil, treestore.Edit, id); !ok {
		t.Fatalf("denied removal must roll back")
	}
	if err := f.store.RemoveNode(f.ctx, nil, supervisor, treestore.Edit, id, true); err != nil {
		t.Fatal(err)
	}
}
