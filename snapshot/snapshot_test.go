package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database/dbtest"
	"github.com/SharedCode/treestore/tree"
)

type memorySink map[string][]byte

func (m memorySink) Write(ctx context.Context, name string, body []byte) (string, error) {
	m[name] = body
	return "memory://" + name, nil
}

func newStore(t *testing.T) *tree.Store {
	t.Helper()
	db := dbtest.Open(t, treestore.Spreaded)
	s, err := tree.New(db, tree.Config{Content: content.NewMemoryStore()})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.EnsureRoots(ctx, nil, treestore.System()); err != nil {
		t.Fatal(err)
	}
	a, err := s.CreateNode(ctx, nil, treestore.System(), treestore.Edit, tree.NewNode{ParentID: treestore.RootNodeID, Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNode(ctx, nil, treestore.System(), treestore.Edit, tree.NewNode{ParentID: a, Name: "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateNode(ctx, nil, treestore.System(), treestore.Edit, tree.NewNode{ParentID: treestore.RootNodeID, Name: "c", Position: 1}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestExportWritesNodesInBoundaryOrder(t *testing.T) {
	s := newStore(t)
	sink := memorySink{}
	res, err := Export(context.Background(), s, treestore.Edit, sink)
	if err != nil {
		t.Fatal(err)
	}
	if res.Nodes != 4 || !strings.HasPrefix(res.Location, "memory://tree-edit-") {
		t.Fatalf("unexpected result %+v", res)
	}
	var doc Document
	for _, body := range sink {
		if err := json.Unmarshal(body, &doc); err != nil {
			t.Fatal(err)
		}
	}
	var names []string
	for _, n := range doc.Nodes {
		if len(n.Children) != 0 {
			t.Errorf("node %d exported with nested children", n.ID)
		}
		names = append(names, n.Name)
	}
	if strings.Join(names, ",") != "Root,a,b,c" {
		t.Errorf("order %v", names)
	}
	if doc.Mode != "edit" || doc.ID == "" {
		t.Errorf("header %+v", doc)
	}
}

func TestFileSink(t *testing.T) {
	s := newStore(t)
	dir := t.TempDir()
	res, err := Export(context.Background(), s, treestore.Live, FileSink{Dir: dir + "/exports"})
	if err != nil {
		t.Fatal(err)
	}
	body, err := os.ReadFile(res.Location)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != res.Bytes {
		t.Errorf("wrote %d bytes, reported %d", len(body), res.Bytes)
	}
	entries, _ := os.ReadDir(dir + "/exports")
	if len(entries) != 1 {
		t.Errorf("expected only the export file, found %d entries", len(entries))
	}
}

func TestS3SinkKey(t *testing.T) {
	if _, err := NewS3Sink(treestore.S3Config{Region: "us-east-1"}); err == nil {
		t.Fatal("bucket is required")
	}
	sink, err := NewS3Sink(treestore.S3Config{Region: "us-east-1", Bucket: "trees", Prefix: "exports/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := sink.key("tree.json"); got != "exports/tree.json" {
		t.Errorf("key %q", got)
	}
}
