package patch

import (
	"context"
	"sync"
)

// BatchResult pairs one request's outcome with its index in the batch.
type BatchResult struct {
	Index int
	Patch *Result
	Err   error
}

// ImportBatch runs many patch requests through a bounded worker pool and
// returns one result per request, indexed like the input. The bound keeps
// concurrent reads within the slide storage's I/O limits; no ordering is
// guaranteed between concurrently issued requests. Cancelling the context
// abandons unstarted requests, which report the context error.
func (imp *Importer) ImportBatch(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	results := make([]BatchResult, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = BatchResult{Index: i, Err: err}
					continue
				}
				res, err := imp.Import(ctx, reqs[i])
				results[i] = BatchResult{Index: i, Patch: res, Err: err}
			}
		}()
	}

	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
