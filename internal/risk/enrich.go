package risk

import (
	"context"
	"sync"
)

// MapBounded maps fn over items with at most limit calls in flight. Each of
// the limit workers pulls the next unprocessed index until the list is
// exhausted; every worker writes only its own output slot, so the result
// preserves input order regardless of completion order. The cap exists to
// bound simultaneous database connections, not for correctness.
//
// Errors are not suppressed: the first error fn returns is reported once all
// in-flight calls finish, alongside the partial results. Call sites that
// want per-item degradation wrap fn so it never errors.
func MapBounded[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup

	var mu sync.Mutex
	var firstErr error

	for w := 0; w < limit; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				out, err := fn(ctx, items[i])
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					continue
				}
				results[i] = out
			}
		}()
	}

feed:
	for i := range items {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	return results, firstErr
}
