package redis

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-retry"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/database"
)

// KeyPrefix namespaces sequence keys.
const KeyPrefix = "treestore:seq:"

// Sequencer hands out ids with INCR. Ids are not rolled back with the database
// transaction, gaps after a rollback are expected.
type Sequencer struct {
	conn *Connection
}

// NewSequencer returns a sequencer on conn.
func NewSequencer(conn *Connection) *Sequencer {
	return &Sequencer{conn: conn}
}

// FormatKey returns the Redis key of sequence name.
func FormatKey(name string) string {
	return KeyPrefix + name
}

func (s *Sequencer) NextID(ctx context.Context, _ database.DBTX, name string) (int64, error) {
	key := FormatKey(name)
	var id int64
	err := treestore.Retry(ctx, func(ctx context.Context) error {
		pipe := s.conn.Client.TxPipeline()
		// The root node owns id 1; a fresh sequence must start above it.
		pipe.SetNX(ctx, key, treestore.RootNodeID, 0)
		incr := pipe.Incr(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return retry.RetryableError(err)
		}
		id = incr.Val()
		return nil
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("ex.sequencer.fetch.failed %s: %w", name, err)
	}
	return id, nil
}

func (s *Sequencer) Reset(ctx context.Context, _ database.DBTX, name string, value int64) error {
	return s.conn.Client.Set(ctx, FormatKey(name), value, 0).Err()
}
