package treestore

import (
	"fmt"
	"strings"
)

// TreeMode selects one of the two physically separate tree tables.
type TreeMode int

const (
	// Edit is the staging tree.
	Edit TreeMode = iota
	// Live is the published tree.
	Live
)

// String returns the lower case mode name used in URLs and resource names.
func (m TreeMode) String() string {
	if m == Live {
		return "live"
	}
	return "edit"
}

// Other returns the opposite mode.
func (m TreeMode) Other() TreeMode {
	if m == Live {
		return Edit
	}
	return Live
}

// ParseTreeMode parses "edit" or "live" (case insensitive).
func ParseTreeMode(s string) (TreeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edit":
		return Edit, nil
	case "live":
		return Live, nil
	}
	return Edit, NewError(InvalidOperation, "ex.tree.mode.invalid", s)
}

// Special version numbers of a content primary key that must be resolved to a distinct version.
const (
	MaxVersion  = -1
	LiveVersion = -2
)

// PK identifies a versioned content item.
type PK struct {
	ID      int64 `json:"id"`
	Version int   `json:"version"`
}

// IsDistinctVersion reports whether the version is a concrete version number.
func (pk PK) IsDistinctVersion() bool {
	return pk.Version > 0
}

func (pk PK) String() string {
	switch pk.Version {
	case MaxVersion:
		return fmt.Sprintf("%d.MAX", pk.ID)
	case LiveVersion:
		return fmt.Sprintf("%d.LIVE", pk.ID)
	}
	return fmt.Sprintf("%d.%d", pk.ID, pk.Version)
}

// RootNodeID is the id of the single root node in every tree mode.
const RootNodeID int64 = 1

// TreeNode is a node as returned by read queries.
type TreeNode struct {
	ID               int64       `json:"id"`
	ParentID         int64       `json:"parentId"`
	Mode             TreeMode    `json:"mode"`
	Left             string      `json:"left"`
	Right            string      `json:"right"`
	Depth            int         `json:"depth"`
	DirectChildCount int         `json:"directChildCount"`
	TotalChildCount  int         `json:"totalChildCount"`
	Reference        int64       `json:"reference"`
	Name             string      `json:"name"`
	Dirty            bool        `json:"dirty"`
	Template         string      `json:"template,omitempty"`
	ModifiedAt       int64       `json:"modifiedAt"`
	Position         int         `json:"position"`
	Children         []*TreeNode `json:"children,omitempty"`
}

// IsRoot reports whether the node is the tree root.
func (n *TreeNode) IsRoot() bool {
	return n.ID == RootNodeID
}
