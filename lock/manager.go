package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/cel"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
)

// maxInsertRaces bounds how often a lost insert race is retried as a takeover.
const maxInsertRaces = 3

// Manager grants, extends and revokes advisory locks. Every call takes the DBTX it
// runs on; a nil DBTX uses the Manager's database. Read-modify-write sequences never
// commit in between, so concurrent callers race at the lock table's unique keys.
type Manager struct {
	db          *database.DB
	store       content.Store
	permissions content.PermissionEvaluator

	LooseDuration     time.Duration
	PermanentDuration time.Duration
	// Observer, when set, is told about every lock operation and its outcome.
	Observer func(op string, err error)
}

// NewManager returns a Manager. store resolves non-distinct content versions and loads
// content for edit permission checks; permissions may be nil to allow everything.
func NewManager(db *database.DB, store content.Store, permissions content.PermissionEvaluator) *Manager {
	return &Manager{
		db:                db,
		store:             store,
		permissions:       permissions,
		LooseDuration:     db.Options.LooseLockDuration,
		PermanentDuration: db.Options.PermanentLockDuration,
	}
}

func (m *Manager) conn(tx database.DBTX) database.DBTX {
	if tx == nil {
		return m.db.DB
	}
	return tx
}

func (m *Manager) observe(op string, err error) {
	if m.Observer != nil {
		m.Observer(op, err)
	}
}

// DefaultDuration returns the configured duration of a lock type.
func (m *Manager) DefaultDuration(t Type) time.Duration {
	if t == Permanent {
		return m.PermanentDuration
	}
	return m.LooseDuration
}

// resolve validates target and turns MaxVersion/LiveVersion keys into distinct versions.
func (m *Manager) resolve(ctx context.Context, target Target) (Target, error) {
	if !target.Content {
		if strings.TrimSpace(target.Resource) == "" {
			return target, treestore.NewError(treestore.InvalidOperation, "ex.lock.invalidResource", target)
		}
		return target, nil
	}
	if target.PK.IsDistinctVersion() {
		return target, nil
	}
	if target.PK.Version != treestore.MaxVersion && target.PK.Version != treestore.LiveVersion {
		return target, treestore.NewError(treestore.InvalidOperation, "ex.lock.distictPK", target.PK)
	}
	if m.store == nil {
		return target, treestore.NewError(treestore.InvalidOperation, "ex.lock.distictPK", target.PK)
	}
	vi, err := m.store.VersionInfo(ctx, target.PK.ID)
	if err != nil {
		return target, treestore.WrapError(treestore.NotFound, err, target.PK)
	}
	pk, ok := vi.Distinct(target.PK)
	if !ok {
		return target, treestore.NewError(treestore.InvalidOperation, "ex.lock.distictPK", target.PK)
	}
	return ContentTarget(pk), nil
}

func (m *Manager) checkEditPermission(ctx context.Context, actor treestore.ActorContext, pk treestore.PK) error {
	if actor.IsGuest() {
		return treestore.NewError(treestore.Denied, "ex.lock.content.guest", pk)
	}
	if m.store == nil {
		return nil
	}
	c, err := m.store.Load(ctx, pk)
	if err != nil {
		return treestore.WrapError(treestore.NotFound, err, pk)
	}
	if err := content.Check(ctx, m.permissions, actor, content.Edit, c); err != nil {
		return treestore.Error{Code: treestore.Denied, Err: fmt.Errorf("ex.lock.content.noEditPermission: %w", err), UserData: pk}
	}
	return nil
}

func denied(key string, current Lock) error {
	return treestore.NewError(treestore.Denied, key, map[string]any{
		"target": current.Target.String(),
		"holder": current.UserID,
		"type":   current.Type.String(),
	})
}

// Lock acquires a lock of type t for the default duration of that type.
func (m *Manager) Lock(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, t Type, target Target) (Lock, error) {
	return m.LockFor(ctx, tx, actor, t, target, m.DefaultDuration(t))
}

// LockFor acquires a lock for duration. Re-acquiring an own lock extends it. Another
// user's Loose lock may be taken over with a Loose request; turning it into a Permanent
// lock, or taking over a Permanent lock, needs a supervisor. Otherwise the call fails
// with Denied naming the holder.
func (m *Manager) LockFor(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, t Type, target Target, duration time.Duration) (Lock, error) {
	l, err := m.lock(ctx, m.conn(tx), actor, t, target, duration)
	m.observe("lock", err)
	return l, err
}

func (m *Manager) lock(ctx context.Context, q database.DBTX, actor treestore.ActorContext, t Type, target Target, duration time.Duration) (Lock, error) {
	if t != Loose && t != Permanent {
		return Lock{}, treestore.NewError(treestore.InvalidOperation, "ex.lock.invalidType", t)
	}
	if duration <= 0 {
		duration = m.DefaultDuration(t)
	}
	target, err := m.resolve(ctx, target)
	if err != nil {
		return Lock{}, err
	}
	if target.Content && !actor.IsSupervisor() {
		if err := m.checkEditPermission(ctx, actor, target.PK); err != nil {
			return Lock{}, err
		}
	}
	for attempt := 0; ; attempt++ {
		current, err := m.getLock(ctx, q, target)
		if err != nil {
			return Lock{}, err
		}
		if current.IsLocked() {
			if current.UserID == actor.UserID {
				return m.extend(ctx, q, actor, current, duration)
			}
			if (current.Type == Permanent || t == Permanent) && !actor.IsSupervisor() {
				return Lock{}, denied("ex.lock.takeOver.denied."+target.kind(), current)
			}
			return m.replace(ctx, q, actor, current, t, duration)
		}
		now := treestore.NowMillis()
		l := Lock{Type: t, Target: target, UserID: actor.UserID, CreatedAt: now, ExpiresAt: now + duration.Milliseconds()}
		err = m.insert(ctx, q, l)
		if err == nil {
			log.Debug("lock acquired", "target", target.String(), "user", actor.UserID, "type", t)
			return l, nil
		}
		if !m.db.Dialect.IsUniqueViolation(err) || attempt >= maxInsertRaces {
			return Lock{}, treestore.WrapError(treestore.LockAcquisitionFailure, err, target)
		}
		// Another session inserted first; reread and continue as a takeover.
		log.Debug("lock insert race lost, retrying as takeover", "target", target.String(), "attempt", attempt)
	}
}

func (m *Manager) insert(ctx context.Context, q database.DBTX, l Lock) error {
	var res sql.Result
	var err error
	if l.Target.Content {
		res, err = q.ExecContext(ctx, "INSERT INTO "+database.TableLocks+
			" (LOCK_ID,LOCK_VER,LOCK_RESOURCE,USER_ID,LOCKTYPE,CREATED_AT,EXPIRES_AT) VALUES (?,?,NULL,?,?,?,?)",
			l.Target.PK.ID, l.Target.PK.Version, l.UserID, int(l.Type), l.CreatedAt, l.ExpiresAt)
	} else {
		res, err = q.ExecContext(ctx, "INSERT INTO "+database.TableLocks+
			" (LOCK_ID,LOCK_VER,LOCK_RESOURCE,USER_ID,LOCKTYPE,CREATED_AT,EXPIRES_AT) VALUES (NULL,NULL,?,?,?,?,?)",
			l.Target.Resource, l.UserID, int(l.Type), l.CreatedAt, l.ExpiresAt)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return treestore.NewError(treestore.LockAcquisitionFailure, "ex.lock.lockFailed.noRows."+l.Target.kind(), l.Target)
	}
	return nil
}

// replace hands current to actor as a fresh lock of type t.
func (m *Manager) replace(ctx context.Context, q database.DBTX, actor treestore.ActorContext, current Lock, t Type, duration time.Duration) (Lock, error) {
	now := treestore.NowMillis()
	where, args := current.Target.where()
	res, err := q.ExecContext(ctx, "UPDATE "+database.TableLocks+" SET USER_ID=?, LOCKTYPE=?, CREATED_AT=?, EXPIRES_AT=? WHERE "+where+" AND USER_ID=?",
		append([]any{actor.UserID, int(t), now, now + duration.Milliseconds()}, append(args, current.UserID)...)...)
	if err != nil {
		return Lock{}, treestore.WrapError(treestore.LockAcquisitionFailure, err, current.Target)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return Lock{}, treestore.NewError(treestore.LockAcquisitionFailure, "ex.lock.takeOverFailed.noRows", current.Target.String())
	}
	log.Debug("lock taken over", "target", current.Target.String(), "from", current.UserID, "to", actor.UserID)
	return Lock{Type: t, Target: current.Target, UserID: actor.UserID, CreatedAt: now, ExpiresAt: now + duration.Milliseconds()}, nil
}

// GetLock returns the lock on target, or a Lock of type None when there is none.
// An expired row is deleted and reported as absent.
func (m *Manager) GetLock(ctx context.Context, tx database.DBTX, target Target) (Lock, error) {
	target, err := m.resolve(ctx, target)
	if err != nil {
		return Lock{}, err
	}
	return m.getLock(ctx, m.conn(tx), target)
}

func (m *Manager) getLock(ctx context.Context, q database.DBTX, target Target) (Lock, error) {
	where, args := target.where()
	var l Lock
	var lt int
	err := q.QueryRowContext(ctx, "SELECT USER_ID,LOCKTYPE,CREATED_AT,EXPIRES_AT FROM "+database.TableLocks+" WHERE "+where, args...).
		Scan(&l.UserID, &lt, &l.CreatedAt, &l.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return noLock(target), nil
	}
	if err != nil {
		return Lock{}, treestore.WrapError(treestore.Integrity, err, target)
	}
	l.Type = Type(lt)
	l.Target = target
	if l.IsExpired() {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+database.TableLocks+" WHERE "+where, args...); err != nil {
			return Lock{}, treestore.WrapError(treestore.Integrity, err, target)
		}
		log.Debug("expired lock discarded", "target", target.String(), "user", l.UserID)
		return noLock(target), nil
	}
	return l, nil
}

// Unlock removes the lock on target. Unlocking an absent lock succeeds. A non-holder
// may unlock Loose or expired locks; Permanent locks need the holder or a supervisor.
func (m *Manager) Unlock(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, target Target) error {
	err := m.unlock(ctx, m.conn(tx), actor, target)
	m.observe("unlock", err)
	return err
}

func (m *Manager) unlock(ctx context.Context, q database.DBTX, actor treestore.ActorContext, target Target) error {
	target, err := m.resolve(ctx, target)
	if err != nil {
		return err
	}
	current, err := m.getLock(ctx, q, target)
	if err != nil {
		return err
	}
	if !current.IsLocked() {
		return nil
	}
	if target.Content && actor.IsGuest() {
		return treestore.NewError(treestore.Denied, "ex.lock.content.guest", target.PK)
	}
	allow := current.Type == Loose || current.IsExpired() ||
		current.UserID == actor.UserID || actor.IsSupervisor()
	if !allow {
		return denied("ex.lock.unlock.denied", current)
	}
	where, args := target.where()
	if _, err := q.ExecContext(ctx, "DELETE FROM "+database.TableLocks+" WHERE "+where, args...); err != nil {
		return treestore.WrapError(treestore.Integrity, err, target)
	}
	log.Debug("lock released", "target", target.String(), "user", actor.UserID)
	return nil
}

// Extend adds duration to the expiry of l. An expired lock is acquired anew.
func (m *Manager) Extend(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, l Lock, duration time.Duration) (Lock, error) {
	q := m.conn(tx)
	var r Lock
	var err error
	if l.IsExpired() {
		r, err = m.lock(ctx, q, actor, l.Type, l.Target, duration)
	} else {
		r, err = m.extend(ctx, q, actor, l, duration)
	}
	m.observe("extend", err)
	return r, err
}

func (m *Manager) extend(ctx context.Context, q database.DBTX, actor treestore.ActorContext, l Lock, duration time.Duration) (Lock, error) {
	allow := l.Type == Loose || l.UserID == actor.UserID || actor.IsSupervisor()
	if !allow {
		return Lock{}, denied("ex.lock.extend.denied."+l.Target.kind(), l)
	}
	expires := l.ExpiresAt + duration.Milliseconds()
	where, args := l.Target.where()
	res, err := q.ExecContext(ctx, "UPDATE "+database.TableLocks+" SET EXPIRES_AT=? WHERE "+where, append([]any{expires}, args...)...)
	if err != nil {
		return Lock{}, treestore.WrapError(treestore.LockAcquisitionFailure, err, l.Target)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return Lock{}, treestore.NewError(treestore.NotFound, "ex.lock.extend.noRows", l.Target.String())
	}
	l.ExpiresAt = expires
	return l, nil
}

// TakeOver transfers l to actor. It is allowed for Loose or expired locks and, for
// Permanent locks, for supervisors. A positive duration is added to the current
// expiry; otherwise the expiry is kept.
func (m *Manager) TakeOver(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, l Lock, duration time.Duration) (Lock, error) {
	r, err := m.takeOver(ctx, m.conn(tx), actor, l, duration)
	m.observe("takeover", err)
	return r, err
}

func (m *Manager) takeOver(ctx context.Context, q database.DBTX, actor treestore.ActorContext, l Lock, duration time.Duration) (Lock, error) {
	allow := l.Type == Loose || l.IsExpired() || (l.Type == Permanent && actor.IsSupervisor())
	if !allow {
		return Lock{}, denied("ex.lock.takeOver.denied."+l.Target.kind(), l)
	}
	if l.Target.Content && !actor.IsSupervisor() {
		if err := m.checkEditPermission(ctx, actor, l.Target.PK); err != nil {
			return Lock{}, err
		}
	}
	set := "USER_ID=?"
	args := []any{actor.UserID}
	expires := l.ExpiresAt
	if duration > 0 {
		expires += duration.Milliseconds()
		set += ", EXPIRES_AT=?"
		args = append(args, expires)
	}
	where, wargs := l.Target.where()
	res, err := q.ExecContext(ctx, "UPDATE "+database.TableLocks+" SET "+set+" WHERE "+where, append(args, wargs...)...)
	if err != nil {
		return Lock{}, treestore.WrapError(treestore.LockAcquisitionFailure, err, l.Target)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return Lock{}, treestore.NewError(treestore.LockAcquisitionFailure, "ex.lock.takeOverFailed.noRows", l.Target.String())
	}
	l.UserID = actor.UserID
	l.ExpiresAt = expires
	return l, nil
}

// Filter narrows ListLocks. Zero fields match everything.
type Filter struct {
	Type Type `json:"type,omitempty"`
	// UserID restricts to one holder when not nil.
	UserID *int64 `json:"userId,omitempty"`
	// Resource matches resource names containing it.
	Resource string `json:"resource,omitempty"`
	// Expression is a CEL boolean expression over "lock".
	Expression string `json:"expression,omitempty"`
}

// ListLocks returns unexpired locks matching f. Non-supervisors only see their own locks.
func (m *Manager) ListLocks(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, f Filter) ([]Lock, error) {
	if !actor.IsSupervisor() {
		uid := actor.UserID
		f.UserID = &uid
	}
	var eval *cel.Evaluator
	if f.Expression != "" {
		e, err := cel.NewEvaluator("lockFilter", f.Expression, "lock")
		if err != nil {
			return nil, treestore.WrapError(treestore.InvalidOperation, err, f.Expression)
		}
		eval = e
	}
	var conds []string
	var args []any
	if f.Type != None {
		conds = append(conds, "LOCKTYPE=?")
		args = append(args, int(f.Type))
	}
	if f.UserID != nil {
		conds = append(conds, "USER_ID=?")
		args = append(args, *f.UserID)
	}
	if r := strings.TrimSpace(f.Resource); r != "" {
		conds = append(conds, "LOCK_RESOURCE LIKE ?")
		args = append(args, "%"+r+"%")
	}
	conds = append(conds, "EXPIRES_AT>?")
	args = append(args, treestore.NowMillis())
	locks, err := m.query(ctx, m.conn(tx), " WHERE "+strings.Join(conds, " AND "), args...)
	if err != nil || eval == nil {
		return locks, err
	}
	filtered := locks[:0]
	for _, l := range locks {
		ok, err := eval.EvaluateBool(map[string]any{"lock": l.vars()})
		if err != nil {
			return nil, treestore.WrapError(treestore.InvalidOperation, err, f.Expression)
		}
		if ok {
			filtered = append(filtered, l)
		}
	}
	return filtered, nil
}

// UserLocks returns the unexpired locks held by userID.
func (m *Manager) UserLocks(ctx context.Context, tx database.DBTX, userID int64) ([]Lock, error) {
	return m.query(ctx, m.conn(tx), " WHERE USER_ID=? AND EXPIRES_AT>?", userID, treestore.NowMillis())
}

func (m *Manager) query(ctx context.Context, q database.DBTX, where string, args ...any) ([]Lock, error) {
	rows, err := q.QueryContext(ctx, "SELECT LOCKTYPE,CREATED_AT,EXPIRES_AT,LOCK_ID,LOCK_VER,LOCK_RESOURCE,USER_ID FROM "+
		database.TableLocks+where+" ORDER BY CREATED_AT", args...)
	if err != nil {
		return nil, treestore.WrapError(treestore.Integrity, err, nil)
	}
	defer rows.Close()
	var locks []Lock
	for rows.Next() {
		var l Lock
		var lt int
		var id sql.NullInt64
		var ver sql.NullInt64
		var res sql.NullString
		if err := rows.Scan(&lt, &l.CreatedAt, &l.ExpiresAt, &id, &ver, &res, &l.UserID); err != nil {
			return nil, treestore.WrapError(treestore.Integrity, err, nil)
		}
		l.Type = Type(lt)
		switch {
		case res.Valid:
			l.Target = ResourceTarget(res.String)
		case id.Valid && ver.Valid:
			l.Target = ContentTarget(treestore.PK{ID: id.Int64, Version: int(ver.Int64)})
		default:
			log.Warn("skipping lock row without target", "user", l.UserID)
			continue
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// SweepExpired deletes all expired lock rows and returns how many were removed.
func (m *Manager) SweepExpired(ctx context.Context, tx database.DBTX) (int64, error) {
	res, err := m.conn(tx).ExecContext(ctx, "DELETE FROM "+database.TableLocks+" WHERE EXPIRES_AT<=?", treestore.NowMillis())
	if err != nil {
		m.observe("sweep", err)
		return 0, treestore.WrapError(treestore.Integrity, err, nil)
	}
	n, _ := res.RowsAffected()
	m.observe("sweep", nil)
	return n, nil
}
