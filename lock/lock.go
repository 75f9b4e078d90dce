// Package lock implements advisory locks on content primary keys and named resources.
// Lock rows live in the TREE_LOCKS table; expired rows are treated as absent on read
// and removed by a periodic sweep.
package lock

import (
	"fmt"
	"strings"
	"time"

	"github.com/SharedCode/treestore"
)

// Type of an advisory lock.
type Type int

const (
	// None marks the absence of a lock.
	None Type = iota
	// Loose locks may be taken over by any user.
	Loose
	// Permanent locks may only be taken over by supervisors or after expiry.
	Permanent
)

func (t Type) String() string {
	switch t {
	case Loose:
		return "Loose"
	case Permanent:
		return "Permanent"
	}
	return "None"
}

// ParseType parses "loose" or "permanent" (case insensitive).
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loose":
		return Loose, nil
	case "permanent":
		return Permanent, nil
	}
	return None, treestore.NewError(treestore.InvalidOperation, "ex.lock.invalidType", s)
}

// Target is the locked object: either a content primary key or a resource name, never both.
type Target struct {
	PK       treestore.PK `json:"pk,omitempty"`
	Resource string       `json:"resource,omitempty"`
	Content  bool         `json:"content"`
}

// ContentTarget targets a content item version.
func ContentTarget(pk treestore.PK) Target {
	return Target{PK: pk, Content: true}
}

// ResourceTarget targets a named resource.
func ResourceTarget(resource string) Target {
	return Target{Resource: resource}
}

// NodeTarget is the resource guarding a tree node in the given mode.
func NodeTarget(mode treestore.TreeMode, nodeID int64) Target {
	return ResourceTarget(fmt.Sprintf("tree:%s:%d", mode, nodeID))
}

func (t Target) String() string {
	if t.Content {
		return "pk:" + t.PK.String()
	}
	return "resource:" + t.Resource
}

func (t Target) kind() string {
	if t.Content {
		return "pk"
	}
	return "resource"
}

func (t Target) where() (string, []any) {
	if t.Content {
		return "LOCK_ID=? AND LOCK_VER=?", []any{t.PK.ID, t.PK.Version}
	}
	return "LOCK_RESOURCE=?", []any{t.Resource}
}

// Lock is a snapshot of a lock row. Timestamps are Unix milliseconds.
type Lock struct {
	Type      Type   `json:"type"`
	Target    Target `json:"target"`
	UserID    int64  `json:"userId"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
}

func noLock(target Target) Lock {
	return Lock{Type: None, Target: target}
}

// IsLocked reports whether the snapshot represents an existing lock.
func (l Lock) IsLocked() bool {
	return l.Type != None
}

// IsExpired reports whether the lock expiry has passed.
func (l Lock) IsExpired() bool {
	return l.IsLocked() && l.ExpiresAt <= treestore.NowMillis()
}

// Remaining returns the time left until expiry.
func (l Lock) Remaining() time.Duration {
	return time.Duration(l.ExpiresAt-treestore.NowMillis()) * time.Millisecond
}

// vars exposes the lock to CEL filter expressions.
func (l Lock) vars() map[string]any {
	return map[string]any{
		"type":      l.Type.String(),
		"userId":    l.UserID,
		"resource":  l.Target.Resource,
		"id":        l.Target.PK.ID,
		"version":   int64(l.Target.PK.Version),
		"createdAt": l.CreatedAt,
		"expiresAt": l.ExpiresAt,
	}
}
