package content

import (
	"context"
	"fmt"
	"sync"

	"github.com/SharedCode/treestore"
)

type memoryItem struct {
	versions    map[int]Content
	maxVersion  int
	liveVersion int
	referrers   map[int64]struct{}
}

// MemoryStore is an in-process Store used by tests and the standalone CLI.
type MemoryStore struct {
	mux    sync.Mutex
	items  map[int64]*memoryItem
	nextID int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]*memoryItem), nextID: 1000}
}

func notFound(id int64) error {
	return treestore.NewError(treestore.NotFound, "ex.content.notFound", id)
}

func (m *MemoryStore) Load(ctx context.Context, pk treestore.PK) (Content, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	it, ok := m.items[pk.ID]
	if !ok {
		return Content{}, notFound(pk.ID)
	}
	v := pk.Version
	switch v {
	case treestore.MaxVersion:
		v = it.maxVersion
	case treestore.LiveVersion:
		v = it.liveVersion
	}
	c, ok := it.versions[v]
	if !ok {
		return Content{}, treestore.NewError(treestore.NotFound, "ex.content.notFound", pk)
	}
	return c, nil
}

func (m *MemoryStore) VersionInfo(ctx context.Context, id int64) (VersionInfo, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	it, ok := m.items[id]
	if !ok {
		return VersionInfo{}, notFound(id)
	}
	return VersionInfo{ID: id, MaxVersion: it.maxVersion, LiveVersion: it.liveVersion}, nil
}

func (m *MemoryStore) Save(ctx context.Context, c Content) (treestore.PK, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if c.PK.ID == 0 {
		m.nextID++
		c.PK = treestore.PK{ID: m.nextID, Version: 1}
		m.items[c.PK.ID] = &memoryItem{
			versions:   map[int]Content{1: c},
			maxVersion: 1,
			referrers:  make(map[int64]struct{}),
		}
		return c.PK, nil
	}
	it, ok := m.items[c.PK.ID]
	if !ok {
		return treestore.PK{}, notFound(c.PK.ID)
	}
	it.maxVersion++
	c.PK.Version = it.maxVersion
	it.versions[c.PK.Version] = c
	return c.PK, nil
}

func (m *MemoryStore) Remove(ctx context.Context, id int64) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.items[id]; !ok {
		return notFound(id)
	}
	delete(m.items, id)
	for _, it := range m.items {
		delete(it.referrers, id)
	}
	return nil
}

func (m *MemoryStore) ReferencedContentCount(ctx context.Context, id int64) (int, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	it, ok := m.items[id]
	if !ok {
		return 0, nil
	}
	return len(it.referrers), nil
}

// Activate marks the max version of id live.
func (m *MemoryStore) Activate(id int64) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	it, ok := m.items[id]
	if !ok {
		return notFound(id)
	}
	it.liveVersion = it.maxVersion
	return nil
}

// AddReference records that content from references content to.
func (m *MemoryStore) AddReference(from, to int64) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	it, ok := m.items[to]
	if !ok {
		return notFound(to)
	}
	it.referrers[from] = struct{}{}
	return nil
}

// Exists reports whether id is stored.
func (m *MemoryStore) Exists(id int64) bool {
	m.mux.Lock()
	defer m.mux.Unlock()
	_, ok := m.items[id]
	return ok
}

// Count returns the number of stored items.
func (m *MemoryStore) Count() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return len(m.items)
}

// RulePermissions is a PermissionEvaluator allowing everything except explicit denials.
type RulePermissions struct {
	mux    sync.RWMutex
	denied map[int64]map[Action]bool
}

// NewRulePermissions returns an evaluator with no denials.
func NewRulePermissions() *RulePermissions {
	return &RulePermissions{denied: make(map[int64]map[Action]bool)}
}

// Deny removes action from userID.
func (p *RulePermissions) Deny(userID int64, actions ...Action) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.denied[userID] == nil {
		p.denied[userID] = make(map[Action]bool)
	}
	for _, a := range actions {
		p.denied[userID][a] = true
	}
}

func (p *RulePermissions) CheckPermission(ctx context.Context, actor treestore.ActorContext, action Action, typeName string,
	stepACL int64, acls []int64, throwIfDenied bool) (bool, error) {
	p.mux.RLock()
	denied := p.denied[actor.UserID][action]
	p.mux.RUnlock()
	if !denied {
		return true, nil
	}
	if throwIfDenied {
		return false, treestore.Error{
			Code:     treestore.Denied,
			Err:      fmt.Errorf("ex.noAccess.%s", action),
			UserData: map[string]any{"user": actor.UserID, "type": typeName},
		}
	}
	return false, nil
}
