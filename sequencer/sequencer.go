// Package sequencer supplies new node ids. The SQL sequencer runs inside the caller's
// transaction; the Redis and Cassandra sequencers live in their backend packages.
package sequencer

import (
	"context"
	"fmt"
	"sync"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// IDSequencer hands out monotonically increasing ids per sequence name.
type IDSequencer interface {
	// NextID returns the next id of name. tx is used by transactional backends and ignored otherwise.
	NextID(ctx context.Context, tx database.DBTX, name string) (int64, error)
	// Reset sets the current value of name so the next id is value+1.
	Reset(ctx context.Context, tx database.DBTX, name string, value int64) error
}

// TreeSequence returns the sequence name used for new nodes of mode.
func TreeSequence(mode treestore.TreeMode) string {
	if mode == treestore.Live {
		return "TREE_LIVE"
	}
	return "TREE_EDIT"
}

// SQL stores sequences in the TREE_SEQUENCE table.
type SQL struct{}

// NewSQL returns the table backed sequencer.
func NewSQL() SQL { return SQL{} }

func (SQL) NextID(ctx context.Context, tx database.DBTX, name string) (int64, error) {
	res, err := tx.ExecContext(ctx, "UPDATE "+database.TableSequence+" SET ID=ID+1 WHERE NAME=?", name)
	if err != nil {
		return 0, fmt.Errorf("ex.sequencer.fetch.failed %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Ids start above the root node id.
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+database.TableSequence+" (NAME, ID) VALUES (?, ?)", name, treestore.RootNodeID+1); err != nil {
			return 0, fmt.Errorf("ex.sequencer.create.failed %s: %w", name, err)
		}
		return treestore.RootNodeID + 1, nil
	}
	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT ID FROM "+database.TableSequence+" WHERE NAME=?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("ex.sequencer.fetch.failed %s: %w", name, err)
	}
	return id, nil
}

func (SQL) Reset(ctx context.Context, tx database.DBTX, name string, value int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE "+database.TableSequence+" SET ID=? WHERE NAME=?", value, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.ExecContext(ctx, "INSERT INTO "+database.TableSequence+" (NAME, ID) VALUES (?, ?)", name, value)
	}
	return err
}

// Memory is a process local sequencer.
type Memory struct {
	mux    sync.Mutex
	values map[string]int64
}

// NewMemory returns an empty in-memory sequencer.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]int64)}
}

func (m *Memory) NextID(ctx context.Context, _ database.DBTX, name string) (int64, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	v, ok := m.values[name]
	if !ok {
		v = treestore.RootNodeID
	}
	v++
	m.values[name] = v
	return v, nil
}

func (m *Memory) Reset(ctx context.Context, _ database.DBTX, name string, value int64) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.values[name] = value
	return nil
}
