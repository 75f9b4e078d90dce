package content

import (
	"context"
	"testing"

	"github.com/SharedCode/treestore"
)

func TestMemoryStoreVersions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	pk, err := s.Save(ctx, Content{TypeName: "ARTICLE", Name: "a"})
	if err != nil {
		t.Fatal(err)
	}
	if pk.Version != 1 {
		t.Fatalf("expected version 1, got %d", pk.Version)
	}
	pk2, _ := s.Save(ctx, Content{PK: pk, TypeName: "ARTICLE", Name: "a2"})
	if pk2.Version != 2 {
		t.Fatalf("expected version 2, got %d", pk2.Version)
	}
	vi, _ := s.VersionInfo(ctx, pk.ID)
	if vi.HasLiveVersion() {
		t.Fatalf("no live version expected")
	}
	if _, ok := vi.Distinct(treestore.PK{ID: pk.ID, Version: treestore.LiveVersion}); ok {
		t.Fatalf("live version must not resolve")
	}
	s.Activate(pk.ID)
	vi, _ = s.VersionInfo(ctx, pk.ID)
	d, ok := vi.Distinct(treestore.PK{ID: pk.ID, Version: treestore.LiveVersion})
	if !ok || d.Version != 2 {
		t.Fatalf("expected live version 2, got %v", d)
	}
	c, err := s.Load(ctx, treestore.PK{ID: pk.ID, Version: treestore.MaxVersion})
	if err != nil || c.Name != "a2" {
		t.Fatalf("unexpected max version load %v, %v", c, err)
	}
	if _, err := s.Load(ctx, treestore.PK{ID: 424242, Version: 1}); !treestore.IsCode(err, treestore.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRulePermissions(t *testing.T) {
	ctx := context.Background()
	p := NewRulePermissions()
	p.Deny(7, Delete)
	actor := treestore.ActorContext{UserID: 7}
	if err := Check(ctx, p, actor, Edit, Content{}); err != nil {
		t.Fatalf("edit must be allowed: %v", err)
	}
	if err := Check(ctx, p, actor, Delete, Content{}); !treestore.IsCode(err, treestore.Denied) {
		t.Fatalf("expected Denied, got %v", err)
	}
	actor.GlobalSupervisor = true
	if err := Check(ctx, p, actor, Delete, Content{}); err != nil {
		t.Fatalf("supervisor must bypass: %v", err)
	}
}
