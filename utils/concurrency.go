package utils

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RunLimited runs job(i) for i in [0, n) with at most maxWorkers running at
// once. The first error cancels the shared context and is returned after all
// started jobs have finished. maxWorkers <= 0 means GOMAXPROCS.
func RunLimited(ctx context.Context, n, maxWorkers int, job func(ctx context.Context, i int) error) error {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return job(gctx, i)
		})
	}
	return g.Wait()
}
