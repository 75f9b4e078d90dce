// Package hooks runs scripts at tree mutation points. Hook failures are logged and
// never fail the mutation that fired them.
package hooks

import (
	"context"
	"fmt"
	log "log/slog"
	"sync"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/cel"
)

// Point names a place in a mutation where hooks fire.
type Point string

const (
	BeforeNodeRemoved      Point = "beforeNodeRemoved"
	AfterNodeRemoved       Point = "afterNodeRemoved"
	AfterFolderReplacement Point = "afterFolderReplacement"
)

// ParsePoint validates a configured point name.
func ParsePoint(s string) (Point, error) {
	switch p := Point(s); p {
	case BeforeNodeRemoved, AfterNodeRemoved, AfterFolderReplacement:
		return p, nil
	}
	return "", fmt.Errorf("unknown hook point %q", s)
}

// Event is the context a hook runs with.
type Event struct {
	Point Point
	Mode  treestore.TreeMode
	Node  treestore.TreeNode
	Actor treestore.ActorContext
	// OldReference and NewReference are set for folder replacements.
	OldReference int64
	NewReference int64
}

func (e Event) vars() map[string]any {
	n := e.Node
	return map[string]any{
		"node": map[string]any{
			"id":               n.ID,
			"parentId":         n.ParentID,
			"name":             n.Name,
			"depth":            int64(n.Depth),
			"reference":        n.Reference,
			"directChildCount": int64(n.DirectChildCount),
			"totalChildCount":  int64(n.TotalChildCount),
			"template":         n.Template,
			"dirty":            n.Dirty,
		},
		"event": map[string]any{
			"point":        string(e.Point),
			"mode":         e.Mode.String(),
			"userId":       e.Actor.UserID,
			"oldReference": e.OldReference,
			"newReference": e.NewReference,
		},
	}
}

// Hook is a script bound to a point.
type Hook interface {
	Name() string
	Run(ctx context.Context, e Event) error
}

type funcHook struct {
	name string
	fn   func(ctx context.Context, e Event) error
}

func (h funcHook) Name() string                           { return h.name }
func (h funcHook) Run(ctx context.Context, e Event) error { return h.fn(ctx, e) }

// Func adapts a Go function to a Hook.
func Func(name string, fn func(ctx context.Context, e Event) error) Hook {
	return funcHook{name: name, fn: fn}
}

// Expression is a hook evaluating a CEL condition over "node" and "event". A false
// result is reported as a hook failure.
type Expression struct {
	eval *cel.Evaluator
}

// NewExpression compiles expr.
func NewExpression(name, expr string) (*Expression, error) {
	e, err := cel.NewEvaluator(name, expr, "node", "event")
	if err != nil {
		return nil, err
	}
	return &Expression{eval: e}, nil
}

func (h *Expression) Name() string { return h.eval.Name }

func (h *Expression) Run(ctx context.Context, e Event) error {
	ok, err := h.eval.EvaluateBool(e.vars())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hook %s rejected node %d at %s", h.eval.Name, e.Node.ID, e.Point)
	}
	return nil
}

// Registry holds hooks per point.
type Registry struct {
	mux   sync.RWMutex
	hooks map[Point][]Hook
	// Observer, when set, is told about each hook run.
	Observer func(point Point, name string, err error)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Point][]Hook)}
}

// FromConfig builds a registry with one expression hook per configured entry.
func FromConfig(configs []treestore.HookConfig) (*Registry, error) {
	r := NewRegistry()
	for _, c := range configs {
		p, err := ParsePoint(c.Point)
		if err != nil {
			return nil, err
		}
		h, err := NewExpression(c.Name, c.Expression)
		if err != nil {
			return nil, err
		}
		r.Register(p, h)
	}
	return r, nil
}

// Register adds h at point p.
func (r *Registry) Register(p Point, h Hook) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.hooks[p] = append(r.hooks[p], h)
}

// Count returns the number of hooks registered at p.
func (r *Registry) Count(p Point) int {
	if r == nil {
		return 0
	}
	r.mux.RLock()
	defer r.mux.RUnlock()
	return len(r.hooks[p])
}

// Fire runs every hook at e.Point in registration order. Errors and panics are logged.
func (r *Registry) Fire(ctx context.Context, e Event) {
	if r == nil {
		return
	}
	r.mux.RLock()
	hs := append([]Hook(nil), r.hooks[e.Point]...)
	r.mux.RUnlock()
	for _, h := range hs {
		err := run(ctx, h, e)
		if err != nil {
			log.Warn("hook failed", "point", e.Point, "hook", h.Name(), "node", e.Node.ID, "error", err)
		}
		if r.Observer != nil {
			r.Observer(e.Point, h.Name(), err)
		}
	}
}

func run(ctx context.Context, h Hook, e Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook %s panicked: %v", h.Name(), p)
		}
	}()
	return h.Run(ctx, e)
}
