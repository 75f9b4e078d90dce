package treestore

import (
	"time"

	"github.com/google/uuid"
)

// NewOperationID returns a random id tagging one request, snapshot or export.
// Entropy failures are retried a few times before giving up with a panic.
func NewOperationID() string {
	var err error
	for i := 0; i < 10; i++ {
		var id uuid.UUID
		if id, err = uuid.NewRandom(); err == nil {
			return id.String()
		}
		time.Sleep(time.Millisecond)
	}
	panic(err)
}
