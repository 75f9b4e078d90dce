// Package tree implements the nested set engine: node info reads, the Simple and
// Spreaded boundary allocators and the mutations over the Edit and Live trees.
//
// Every method takes the transaction it runs in. A nil DBTX makes the method run
// in its own transaction; otherwise the caller commits or rolls back.
package tree

import (
	"context"
	"database/sql"
	"fmt"
	log "log/slog"
	"strings"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/boundary"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
	"github.com/SharedCode/treestore/hooks"
	"github.com/SharedCode/treestore/lock"
	"github.com/SharedCode/treestore/sequencer"
)

// Observer is told about mutation outcomes and reorganizations. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveMutation(op string, mode treestore.TreeMode, err error)
	ObserveReorganization(mode treestore.TreeMode)
}

// Config carries the collaborators of a Store. Only Content is required; a nil
// Sequencer uses the SQL sequence table.
type Config struct {
	Content     content.Store
	Permissions content.PermissionEvaluator
	Locks       *lock.Manager
	Sequencer   sequencer.IDSequencer
	Hooks       *hooks.Registry
	Observer    Observer
}

// Store runs tree reads and mutations against one database.
type Store struct {
	db          *database.DB
	alloc       allocator
	p           *provider
	content     content.Store
	permissions content.PermissionEvaluator
	locks       *lock.Manager
	seq         sequencer.IDSequencer
	hooks       *hooks.Registry
	observer    Observer
}

// New returns a Store using the strategy configured on db.
func New(db *database.DB, c Config) (*Store, error) {
	if c.Content == nil {
		return nil, fmt.Errorf("tree store requires a content store")
	}
	s := &Store{
		db:          db,
		content:     c.Content,
		permissions: c.Permissions,
		locks:       c.Locks,
		seq:         c.Sequencer,
		hooks:       c.Hooks,
		observer:    c.Observer,
	}
	if s.seq == nil {
		s.seq = sequencer.NewSQL()
	}
	alloc, err := newAllocator(db, func(mode treestore.TreeMode) {
		if s.observer != nil {
			s.observer.ObserveReorganization(mode)
		}
	})
	if err != nil {
		return nil, err
	}
	s.alloc = alloc
	s.p = alloc.nodes()
	return s, nil
}

// Strategy returns the boundary strategy in use.
func (s *Store) Strategy() treestore.Strategy {
	return s.db.Options.Strategy
}

func (s *Store) conn(tx database.DBTX) database.DBTX {
	if tx == nil {
		return s.db.DB
	}
	return tx
}

// mutate runs task in tx or a new transaction, runs the optional integrity check on
// the touched modes and reports the outcome.
func (s *Store) mutate(ctx context.Context, tx database.DBTX, op string, modes []treestore.TreeMode, task func(q database.DBTX) error) (err error) {
	defer func() {
		if s.observer != nil {
			s.observer.ObserveMutation(op, modes[0], err)
		}
		if err != nil {
			log.Debug("tree mutation failed", "op", op, "mode", modes[0], "error", err)
		}
	}()
	run := func(q database.DBTX) error {
		if err := task(q); err != nil {
			return err
		}
		if !s.db.Options.CheckTreeAfterMutation {
			return nil
		}
		for _, m := range modes {
			if err := s.checkTree(ctx, q, m); err != nil {
				return err
			}
		}
		return nil
	}
	if tx != nil {
		return run(tx)
	}
	return s.db.InTx(ctx, func(t *sql.Tx) error { return run(t) })
}

func modes(m ...treestore.TreeMode) []treestore.TreeMode { return m }

func (s *Store) bound(n boundary.Number) boundary.Valuer {
	return s.p.bound(n)
}

// lockRows takes database row locks on ids of mode before rows are rewritten.
func (s *Store) lockRows(ctx context.Context, q database.DBTX, mode treestore.TreeMode, ids ...int64) error {
	return s.db.LockRowsForUpdate(ctx, q, database.TreeTable(mode), unique(ids))
}

// guard takes transient advisory locks on nodes and the current versions of references.
func (s *Store) guard(ctx context.Context, q database.DBTX, actor treestore.ActorContext, mode treestore.TreeMode, ids []int64, refs ...int64) (*lock.Guard, error) {
	if s.locks == nil {
		return nil, nil
	}
	var targets []lock.Target
	for _, id := range unique(ids) {
		targets = append(targets, lock.NodeTarget(mode, id))
	}
	for _, ref := range unique(refs) {
		if ref == 0 {
			continue
		}
		vi, err := s.content.VersionInfo(ctx, ref)
		if err != nil || vi.MaxVersion <= 0 {
			continue
		}
		targets = append(targets, lock.ContentTarget(treestore.PK{ID: ref, Version: vi.MaxVersion}))
	}
	return s.locks.Guard(ctx, q, actor, targets...)
}

func release(ctx context.Context, g *lock.Guard) {
	if err := g.Release(ctx); err != nil {
		log.Warn("releasing tree guard failed", "error", err)
	}
}

// checkReference evaluates action on the content a node references. References to
// content that no longer exists carry no permissions and pass.
func (s *Store) checkReference(ctx context.Context, actor treestore.ActorContext, ref int64, action content.Action) error {
	if ref == 0 || s.permissions == nil || actor.IsSupervisor() {
		return nil
	}
	c, err := s.content.Load(ctx, treestore.PK{ID: ref, Version: treestore.MaxVersion})
	if treestore.IsCode(err, treestore.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return content.Check(ctx, s.permissions, actor, action, c)
}

// newFolder creates a folder placeholder content item and returns its id.
func (s *Store) newFolder(ctx context.Context, actor treestore.ActorContext, name string) (int64, error) {
	pk, err := s.content.Save(ctx, content.Content{TypeName: content.FolderType, Name: name, CreatorID: actor.UserID})
	if err != nil {
		return 0, fmt.Errorf("create folder placeholder %q: %w", name, err)
	}
	return pk.ID, nil
}

// cleanName trims name and defaults it to the node id.
func cleanName(name string, id int64) (string, error) {
	name = strings.TrimSpace(name)
	if strings.Contains(name, "/") {
		return "", treestore.NewError(treestore.InvalidOperation, "ex.tree.name.invalid", name)
	}
	if name == "" {
		name = fmt.Sprint(id)
	}
	return name, nil
}

func checkTemplate(data string) error {
	if strings.Contains(data, ",") {
		return treestore.NewError(treestore.InvalidOperation, "ex.tree.setData.invalid", data)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}

func unique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// insertRow writes r with boundaries b into mode.
func (s *Store) insertRow(ctx context.Context, q database.DBTX, mode treestore.TreeMode, r *NodeInfo, b bounds) error {
	_, err := q.ExecContext(ctx, "INSERT INTO "+database.TreeTable(mode)+" ("+nodeColumns+
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, nullInt(r.ParentID), r.Depth, s.bound(b.left), s.bound(b.right), r.Dirty,
		r.DirectChildCount, r.TotalChildCount, nullInt(r.Reference), r.Name, nullString(r.Template), r.ModifiedAt)
	if err != nil && s.db.Dialect.IsUniqueViolation(err) {
		return treestore.NewError(treestore.InvalidOperation, "ex.tree.create.duplicateId", map[string]any{"id": r.ID, "mode": mode.String()})
	}
	return err
}

// addTotal adds delta to the descendant count of ids.
func (s *Store) addTotal(ctx context.Context, q database.DBTX, mode treestore.TreeMode, ids []int64, delta int) error {
	if len(ids) == 0 || delta == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET TOTAL_CHILDCOUNT=TOTAL_CHILDCOUNT+? WHERE ID IN ("+
		database.Placeholders(len(ids))+")", append([]any{delta}, database.Int64Args(ids)...)...)
	return err
}

// addDirect adds delta to the direct child count of id.
func (s *Store) addDirect(ctx context.Context, q database.DBTX, mode treestore.TreeMode, id int64, delta int) error {
	if delta == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, "UPDATE "+database.TreeTable(mode)+" SET CHILDCOUNT=CHILDCOUNT+? WHERE ID=?", delta, id)
	return err
}

// markDirty flags Edit nodes as unpublished. It does nothing for Live.
func (s *Store) markDirty(ctx context.Context, q database.DBTX, mode treestore.TreeMode, ids ...int64) error {
	if mode == treestore.Live || len(ids) == 0 {
		return nil
	}
	ids = unique(ids)
	_, err := q.ExecContext(ctx, "UPDATE "+database.TableTreeEdit+" SET DIRTY=TRUE WHERE ID IN ("+
		database.Placeholders(len(ids))+")", database.Int64Args(ids)...)
	return err
}

// markSubtreeDirty flags n and its descendants.
func (s *Store) markSubtreeDirty(ctx context.Context, q database.DBTX, n *NodeInfo) error {
	if n.Mode == treestore.Live {
		return nil
	}
	_, err := q.ExecContext(ctx, "UPDATE "+database.TableTreeEdit+" SET DIRTY=TRUE WHERE LFT>=? AND RGT<=?",
		s.bound(n.Left), s.bound(n.Right))
	return err
}

func (s *Store) fire(ctx context.Context, p hooks.Point, actor treestore.ActorContext, n *NodeInfo, oldRef, newRef int64) {
	s.hooks.Fire(ctx, hooks.Event{
		Point:        p,
		Mode:         n.Mode,
		Node:         n.Node(),
		Actor:        actor,
		OldReference: oldRef,
		NewReference: newRef,
	})
}
