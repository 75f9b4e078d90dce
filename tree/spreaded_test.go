package tree

import (
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
)

func TestSpacingPredicates(t *testing.T) {
	n := &NodeInfo{Left: boundary.NewDecimal(0), Right: boundary.NewDecimal(100), TotalChildCount: 3}
	if s := n.DefaultSpacing(); s.Cmp(boundary.Int(13)) != 0 {
		t.Errorf("spacing %s, want 13", s)
	}
	if !n.HasSpaceFor(3, 13) {
		t.Errorf("3 nodes with spacing 13 fit into 99 values")
	}
	if n.HasSpaceFor(3, 14) {
		t.Errorf("3 nodes with spacing 14 need 104 values")
	}
	if !n.IsSpaceOptimizable() {
		t.Errorf("spacing 13 is optimizable")
	}
	tight := &NodeInfo{Left: boundary.NewDecimal(0), Right: boundary.NewDecimal(20), TotalChildCount: 3}
	if tight.IsSpaceOptimizable() {
		t.Errorf("spacing %s is not optimizable", tight.DefaultSpacing())
	}
}

func TestLayoutNestsRows(t *testing.T) {
	rows := []*NodeInfo{
		{ID: 2, Depth: 2, TotalChildCount: 1, Left: boundary.Int(10), Right: boundary.Int(20)},
		{ID: 3, Depth: 3, Left: boundary.Int(12), Right: boundary.Int(14)},
		{ID: 4, Depth: 2, Left: boundary.Int(30), Right: boundary.Int(40)},
	}
	got := layout(rows, boundary.Int(0), 2, boundary.Int(2), nil, nil)
	want := [][2]int64{{3, 11}, {6, 9}, {15, 18}}
	for i, b := range got {
		if b.left.Cmp(boundary.Int(want[i][0])) != 0 || b.right.Cmp(boundary.Int(want[i][1])) != 0 {
			t.Errorf("row %d: got [%s, %s], want %v", i, b.left, b.right, want[i])
		}
	}

	shifted := layout(rows, boundary.Int(0), 2, boundary.Int(2), boundary.Int(25), boundary.Int(100))
	if shifted[0].left.Cmp(boundary.Int(3)) != 0 || shifted[1].right.Cmp(boundary.Int(9)) != 0 {
		t.Errorf("rows in front of the insert point moved: %v", shifted[:2])
	}
	if shifted[2].left.Cmp(boundary.Int(115)) != 0 || shifted[2].right.Cmp(boundary.Int(118)) != 0 {
		t.Errorf("row behind the insert point: [%s, %s]", shifted[2].left, shifted[2].right)
	}
}

func TestRepeatedHeadInsertsReorganize(t *testing.T) {
	f := newFixture(t, treestore.Spreaded)
	p := f.create(treestore.Edit, root, "p", 0)
	var tail []string
	for i := 0; i < 3; i++ {
		q := f.create(treestore.Edit, p, "q"+strconv.Itoa(i), i)
		f.create(treestore.Edit, q, "x", 0)
		f.create(treestore.Edit, q, "y", 1)
		tail = append(tail, "q"+strconv.Itoa(i))
	}
	var head []string
	for i := 0; i < 60; i++ {
		name := "n" + strconv.Itoa(i)
		f.create(treestore.Edit, p, name, 0)
		head = append([]string{name}, head...)
	}
	if got := f.children(treestore.Edit, p); !equal(got, append(head, tail...)) {
		t.Fatalf("order after reorganization: %v", got)
	}
	q0, err := f.store.GetIDByPath(f.ctx, nil, treestore.Edit, p, "q0")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.flatten(treestore.Edit, q0); !equal(got, []string{"3:q0", "4:x", "4:y"}) {
		t.Errorf("nested subtree damaged: %v", got)
	}
	if v := testutil.ToFloat64(f.metrics.Reorganizations.WithLabelValues("edit")); v == 0 {
		t.Errorf("expected at least one reorganization")
	}
	f.verify()
}

func TestCapacityIsReported(t *testing.T) {
	f := newFixtureWithOptions(t, treestore.Options{Strategy: treestore.Spreaded, MaxRight: "1000"})
	created := 0
	var err error
	for i := 0; i < 400; i++ {
		if _, err = f.store.CreateNode(f.ctx, nil, alice, treestore.Edit, NewNode{ParentID: root, Name: strconv.Itoa(i)}); err != nil {
			break
		}
		created++
	}
	if !treestore.IsCode(err, treestore.Capacity) {
		t.Fatalf("expected capacity error, got %v after %d nodes", err, created)
	}
	if created < 50 {
		t.Errorf("capacity exhausted after only %d nodes", created)
	}
	if n := f.info(treestore.Edit, root); n.DirectChildCount != created {
		t.Errorf("failed insert left %d children, want %d", n.DirectChildCount, created)
	}
	f.verify()
}

func TestMoveAndCopyInTightTree(t *testing.T) {
	f := newFixtureWithOptions(t, treestore.Options{Strategy: treestore.Spreaded, MaxRight: "100000"})
	a := f.create(treestore.Edit, root, "a", 0)
	b := f.create(treestore.Edit, root, "b", 1)
	for i := 0; i < 20; i++ {
		f.create(treestore.Edit, a, strconv.Itoa(i), 0)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.store.Copy(f.ctx, nil, alice, treestore.Edit, a, b, 0); err != nil {
			t.Fatalf("copy %d: %v", i, err)
		}
	}
	if err := f.store.Move(f.ctx, nil, alice, treestore.Edit, a, b, 3); err != nil {
		t.Fatal(err)
	}
	if n := f.info(treestore.Edit, b); n.DirectChildCount != 6 || n.TotalChildCount != 126 {
		t.Errorf("b counters: direct %d total %d", n.DirectChildCount, n.TotalChildCount)
	}
	f.verify()
}
