package cassandra

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/sethvargo/go-retry"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// Sequencer increments sequence rows with compare-and-set lightweight transactions.
type Sequencer struct {
	conn *Connection
}

// NewSequencer returns a sequencer on conn.
func NewSequencer(conn *Connection) *Sequencer {
	return &Sequencer{conn: conn}
}

func (s *Sequencer) table() string {
	return s.conn.Keyspace + ".sequence"
}

func (s *Sequencer) NextID(ctx context.Context, _ database.DBTX, name string) (int64, error) {
	var next int64
	err := treestore.Retry(ctx, func(ctx context.Context) error {
		var existing string
		var current int64
		// Seed the row at the root id on first use; a lost race just reads the winner's value.
		applied, err := s.conn.Session.Query(fmt.Sprintf("INSERT INTO %s (name, id) VALUES (?, ?) IF NOT EXISTS", s.table()),
			name, treestore.RootNodeID).WithContext(ctx).ScanCAS(&existing, &current)
		if err != nil {
			return retry.RetryableError(err)
		}
		if applied {
			current = treestore.RootNodeID
		}
		var seen int64
		applied, err = s.conn.Session.Query(fmt.Sprintf("UPDATE %s SET id = ? WHERE name = ? IF id = ?", s.table()),
			current+1, name, current).WithContext(ctx).ScanCAS(&seen)
		if err != nil {
			return retry.RetryableError(err)
		}
		if !applied {
			log.Debug("sequence compare-and-set lost", "name", name, "expected", current, "seen", seen)
			return retry.RetryableError(fmt.Errorf("sequence %s moved from %d to %d", name, current, seen))
		}
		next = current + 1
		return nil
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("ex.sequencer.fetch.failed %s: %w", name, err)
	}
	return next, nil
}

func (s *Sequencer) Reset(ctx context.Context, _ database.DBTX, name string, value int64) error {
	return s.conn.Session.Query(fmt.Sprintf("UPDATE %s SET id = ? WHERE name = ?", s.table()), value, name).
		WithContext(ctx).Exec()
}
