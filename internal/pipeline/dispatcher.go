package pipeline

import (
	"context"
	"sync"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// dispatch fans units out to a pool of workers and returns their results. Each
// worker runs on its own forked stack. The channel closes once every worker
// has exited, after the units run out or ctx finishes.
func dispatch(
	ctx context.Context,
	workers int,
	units []Unit,
	fn func(context.Context, Unit) unitStats,
) <-chan unitStats {
	jobs := make(chan Unit)
	results := make(chan unitStats, len(units))

	go func() {
		defer close(jobs)
		for _, unit := range units {
			select {
			case <-ctx.Done():
				return
			case jobs <- unit:
			}
		}
	}()

	var wg sync.WaitGroup
	for range max(workers, 1) {
		wg.Add(1)
		go func(wctx context.Context) {
			defer wg.Done()
			for unit := range jobs {
				if wctx.Err() != nil {
					return
				}
				results <- fn(wctx, unit)
			}
		}(progress.Fork(ctx))
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}
