// Package content declares the collaborators the tree engine consumes but does not own:
// the versioned content store and the permission evaluator.
package content

import (
	"context"

	"github.com/SharedCode/treestore"
)

// FolderType is the type name of placeholder folder content items.
const FolderType = "FOLDER"

// VersionInfo summarizes the versions of a content item.
type VersionInfo struct {
	ID         int64
	MaxVersion int
	// LiveVersion is zero when no version is live.
	LiveVersion int
}

// HasLiveVersion reports whether a live version exists.
func (v VersionInfo) HasLiveVersion() bool {
	return v.LiveVersion > 0
}

// Distinct resolves MaxVersion or LiveVersion in pk to a concrete version.
func (v VersionInfo) Distinct(pk treestore.PK) (treestore.PK, bool) {
	switch pk.Version {
	case treestore.MaxVersion:
		return treestore.PK{ID: pk.ID, Version: v.MaxVersion}, v.MaxVersion > 0
	case treestore.LiveVersion:
		if v.HasLiveVersion() {
			return treestore.PK{ID: pk.ID, Version: v.LiveVersion}, true
		}
		return pk, false
	}
	return pk, pk.Version > 0
}

// Content is the part of a content item the tree engine looks at.
type Content struct {
	PK        treestore.PK
	TypeName  string
	Name      string
	CreatorID int64
	StepACL   int64
	ACLs      []int64
}

// IsFolder reports whether the item is a folder placeholder.
func (c Content) IsFolder() bool {
	return c.TypeName == FolderType
}

// Store is the versioned content store.
type Store interface {
	// Load returns the content at pk; a non-distinct version resolves via VersionInfo.
	Load(ctx context.Context, pk treestore.PK) (Content, error)
	VersionInfo(ctx context.Context, id int64) (VersionInfo, error)
	// Save creates the item when PK.ID is zero, otherwise stores a new version. It returns the stored PK.
	Save(ctx context.Context, c Content) (treestore.PK, error)
	// Remove deletes all versions of id.
	Remove(ctx context.Context, id int64) error
	// ReferencedContentCount returns how many other content items reference id.
	ReferencedContentCount(ctx context.Context, id int64) (int, error)
}

// Action is a permission checked before mutations.
type Action int

const (
	Read Action = iota
	Edit
	Create
	Delete
	Relate
	Export
)

func (a Action) String() string {
	switch a {
	case Read:
		return "read"
	case Edit:
		return "edit"
	case Create:
		return "create"
	case Delete:
		return "delete"
	case Relate:
		return "relate"
	case Export:
		return "export"
	}
	return "unknown"
}

// PermissionEvaluator decides whether actor may perform action on items of the given
// type, workflow step ACL and content ACLs. With throwIfDenied a denial is returned as
// an Error with code Denied, otherwise as false.
type PermissionEvaluator interface {
	CheckPermission(ctx context.Context, actor treestore.ActorContext, action Action, typeName string,
		stepACL int64, acls []int64, throwIfDenied bool) (bool, error)
}

// Check is the common call: evaluate action against c and fail when denied.
// Supervisors and system actors pass without consulting the evaluator.
func Check(ctx context.Context, pe PermissionEvaluator, actor treestore.ActorContext, action Action, c Content) error {
	if pe == nil || actor.IsSupervisor() {
		return nil
	}
	_, err := pe.CheckPermission(ctx, actor, action, c.TypeName, c.StepACL, c.ACLs, true)
	return err
}
