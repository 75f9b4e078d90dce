package lock

import (
	"context"
	"errors"
	log "log/slog"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// Guard holds the transient locks a tree mutation took for its duration.
type Guard struct {
	m     *Manager
	q     database.DBTX
	actor treestore.ActorContext
	taken []Target
}

// Guard checks every target before a mutation. An unlocked target gets a transient
// Loose lock owned by actor; own locks and other users' Loose locks pass; another
// user's live Permanent lock fails with Denied unless actor is a supervisor. Guests
// are denied on content targets.
// Release must be called before the mutation returns.
func (m *Manager) Guard(ctx context.Context, tx database.DBTX, actor treestore.ActorContext, targets ...Target) (*Guard, error) {
	g := &Guard{m: m, q: m.conn(tx), actor: actor}
	for _, t := range targets {
		if err := g.add(ctx, t); err != nil {
			if rerr := g.Release(ctx); rerr != nil {
				log.Warn("releasing guard locks failed", "error", rerr)
			}
			m.observe("guard", err)
			return nil, err
		}
	}
	m.observe("guard", nil)
	return g, nil
}

func (g *Guard) add(ctx context.Context, t Target) error {
	t, err := g.m.resolve(ctx, t)
	if err != nil {
		return err
	}
	if t.Content && g.actor.IsGuest() {
		return treestore.NewError(treestore.Denied, "ex.lock.content.guest", t.PK)
	}
	for _, seen := range g.taken {
		if seen == t {
			return nil
		}
	}
	for attempt := 0; ; attempt++ {
		current, err := g.m.getLock(ctx, g.q, t)
		if err != nil {
			return err
		}
		if current.IsLocked() {
			if current.UserID == g.actor.UserID || current.Type == Loose || g.actor.IsSupervisor() {
				return nil
			}
			return denied("ex.lock.guard.denied."+t.kind(), current)
		}
		now := treestore.NowMillis()
		err = g.m.insert(ctx, g.q, Lock{
			Type:      Loose,
			Target:    t,
			UserID:    g.actor.UserID,
			CreatedAt: now,
			ExpiresAt: now + g.m.LooseDuration.Milliseconds(),
		})
		if err == nil {
			g.taken = append(g.taken, t)
			return nil
		}
		if !g.m.db.Dialect.IsUniqueViolation(err) || attempt >= maxInsertRaces {
			return treestore.WrapError(treestore.LockAcquisitionFailure, err, t)
		}
	}
}

// Release removes the transient locks taken by the guard. It is safe to call more than once.
func (g *Guard) Release(ctx context.Context) error {
	if g == nil {
		return nil
	}
	var errs []error
	for _, t := range g.taken {
		where, args := t.where()
		if _, err := g.q.ExecContext(ctx, "DELETE FROM "+database.TableLocks+" WHERE "+where+" AND USER_ID=?",
			append(args, g.actor.UserID)...); err != nil {
			errs = append(errs, err)
		}
	}
	g.taken = nil
	return errors.Join(errs...)
}

// Held returns the targets the guard locked itself.
func (g *Guard) Held() []Target {
	return append([]Target(nil), g.taken...)
}
