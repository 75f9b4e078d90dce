package treestore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunConcurrently runs tasks on an errgroup bound to ctx and returns the first error.
// maxThreadCount > 0 limits the number of concurrent goroutines.
func RunConcurrently(ctx context.Context, maxThreadCount int, tasks ...func(ctx context.Context) error) error {
	eg, ctx2 := errgroup.WithContext(ctx)
	if maxThreadCount > 0 {
		eg.SetLimit(maxThreadCount)
	}
	for _, task := range tasks {
		eg.Go(func() error {
			return task(ctx2)
		})
	}
	return eg.Wait()
}
