package redis

import (
	"context"
	"os"
	"testing"
)

func openTestConnection(t *testing.T) *Connection {
	addr := os.Getenv("TREESTORE_REDIS_ADDR")
	if addr == "" {
		t.Skip("TREESTORE_REDIS_ADDR not set")
	}
	o := DefaultOptions()
	o.Address = addr
	c, err := OpenConnection(o)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	t.Cleanup(func() { CloseConnection() })
	return c
}

func TestSequencerStartsAboveRoot(t *testing.T) {
	c := openTestConnection(t)
	ctx := context.Background()
	name := "test_" + t.Name()
	c.Client.Del(ctx, FormatKey(name))
	s := NewSequencer(c)
	id, err := s.NextID(ctx, nil, name)
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Errorf("expected first id 2, got %d", id)
	}
	if err := s.Reset(ctx, nil, name, 40); err != nil {
		t.Fatal(err)
	}
	id, _ = s.NextID(ctx, nil, name)
	if id != 41 {
		t.Errorf("expected 41 after reset, got %d", id)
	}
	c.Client.Del(ctx, FormatKey(name))
}

func TestFormatKey(t *testing.T) {
	if FormatKey("TREE_EDIT") != "treestore:seq:TREE_EDIT" {
		t.Errorf("unexpected key %s", FormatKey("TREE_EDIT"))
	}
}
