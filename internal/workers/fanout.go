package workers

import (
	"context"
	"sync"
)

// FanOut runs fn for every item concurrently and waits for all of them.
// Results are returned in item order. A failure in one unit never stops
// its siblings; fn reports failures in its result.
func FanOut[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) R) []R {
	results := make([]R, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			results[i] = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()

	return results
}
