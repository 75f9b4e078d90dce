package main

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/cassandra"
	"github.com/SharedCode/treestore/content"
	"github.com/SharedCode/treestore/database"
	"github.com/SharedCode/treestore/hooks"
	"github.com/SharedCode/treestore/lock"
	"github.com/SharedCode/treestore/metrics"
	"github.com/SharedCode/treestore/redis"
	"github.com/SharedCode/treestore/sequencer"
	"github.com/SharedCode/treestore/tree"
)

type loader func() (treestore.Options, error)

// app holds the wired engine of one command invocation.
type app struct {
	options treestore.Options
	db      *database.DB
	trees   *tree.Store
	locks   *lock.Manager
	closers []func()
}

func openApp(ctx context.Context, load loader) (*app, error) {
	options, err := load()
	if err != nil {
		return nil, err
	}
	db, err := database.Open(ctx, options)
	if err != nil {
		return nil, err
	}
	a := &app{options: db.Options, db: db}
	a.closers = append(a.closers, func() { db.Close() })

	seq, err := a.sequencer()
	if err != nil {
		a.close()
		return nil, err
	}
	registry, err := hooks.FromConfig(options.Hooks)
	if err != nil {
		a.close()
		return nil, err
	}

	m := metrics.Default()
	db.RowLockObserver = m.ObserveRowLockWait
	store := content.NewMemoryStore()
	perms := content.NewRulePermissions()
	a.locks = lock.NewManager(db, store, perms)
	a.locks.Observer = m.ObserveLock
	a.trees, err = tree.New(db, tree.Config{
		Content:     store,
		Permissions: perms,
		Locks:       a.locks,
		Sequencer:   seq,
		Hooks:       registry,
		Observer:    m,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) sequencer() (sequencer.IDSequencer, error) {
	switch a.options.Sequencer {
	case "memory":
		return sequencer.NewMemory(), nil
	case "redis":
		var conn *redis.Connection
		var err error
		if a.options.Redis.URL != "" {
			conn, err = redis.OpenConnectionWithURL(a.options.Redis.URL)
		} else {
			conn, err = redis.OpenConnection(redis.OptionsFromConfig(*a.options.Redis))
		}
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := redis.CloseConnection(); err != nil {
				log.Warn("closing redis connection failed", "error", err)
			}
		})
		return redis.NewSequencer(conn), nil
	case "cassandra":
		conn, err := cassandra.OpenConnection(cassandra.ConfigFromOptions(*a.options.Cassandra))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		return cassandra.NewSequencer(conn), nil
	case "sql":
		return sequencer.NewSQL(), nil
	}
	return nil, fmt.Errorf("unsupported sequencer %q", a.options.Sequencer)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// withApp opens the engine, runs task and closes it.
func withApp(ctx context.Context, load loader, task func(a *app) error) error {
	a, err := openApp(ctx, load)
	if err != nil {
		return err
	}
	defer a.close()
	return task(a)
}
