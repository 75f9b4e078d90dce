// Package snapshot exports a tree mode as one JSON document and ships it to a sink.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"time"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// TreeReader is the part of tree.Store an export needs.
type TreeReader interface {
	GetTree(ctx context.Context, tx database.DBTX, mode treestore.TreeMode, id int64, depth int) (*treestore.TreeNode, error)
}

// Sink stores an exported document under name and returns where it went.
type Sink interface {
	Write(ctx context.Context, name string, body []byte) (string, error)
}

// Document is the exported form of a tree. Nodes are flat, in boundary order,
// without nested children.
type Document struct {
	ID         string               `json:"id"`
	Mode       string               `json:"mode"`
	ExportedAt time.Time            `json:"exportedAt"`
	Nodes      []treestore.TreeNode `json:"nodes"`
}

// Result describes a finished export.
type Result struct {
	Location string
	Nodes    int
	Bytes    int
}

// Build reads the whole tree of mode into a Document.
func Build(ctx context.Context, r TreeReader, mode treestore.TreeMode) (Document, error) {
	root, err := r.GetTree(ctx, nil, mode, treestore.RootNodeID, 0)
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		ID:         treestore.NewOperationID(),
		Mode:       mode.String(),
		ExportedAt: treestore.Now().UTC(),
		Nodes:      make([]treestore.TreeNode, 0, root.TotalChildCount+1),
	}
	var walk func(n *treestore.TreeNode)
	walk = func(n *treestore.TreeNode) {
		flat := *n
		flat.Children = nil
		doc.Nodes = append(doc.Nodes, flat)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return doc, nil
}

// Name returns the object name a document is stored under.
func (d Document) Name() string {
	return fmt.Sprintf("tree-%s-%s-%s.json", d.Mode, d.ExportedAt.Format("20060102T150405Z"), d.ID[:8])
}

// Export writes the tree of mode to sink.
func Export(ctx context.Context, r TreeReader, mode treestore.TreeMode, sink Sink) (Result, error) {
	doc, err := Build(ctx, r, mode)
	if err != nil {
		return Result{}, err
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encode %s snapshot: %w", mode, err)
	}
	location, err := sink.Write(ctx, doc.Name(), body)
	if err != nil {
		return Result{}, fmt.Errorf("write %s snapshot: %w", mode, err)
	}
	log.Info("tree exported", "mode", mode, "nodes", len(doc.Nodes), "location", location)
	return Result{Location: location, Nodes: len(doc.Nodes), Bytes: len(body)}, nil
}
