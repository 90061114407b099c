package engine

import (
	"context"
	"sync"

	"compress-tool-go/internal/media"
)

type indexed struct {
	index   int
	outcome FileOutcome
}

// run applies work to every file and hands each outcome to emit in scan
// order. With more than one worker, files are processed concurrently and
// completions are held back until every earlier file has been emitted.
// emit always runs on the calling goroutine.
func (e *Engine) run(ctx context.Context, files []media.Descriptor, work func(int, media.Descriptor) FileOutcome, emit func(int, FileOutcome)) {
	workers := e.workers
	if workers > len(files) {
		workers = len(files)
	}
	if workers <= 1 {
		for i, f := range files {
			emit(i, work(i, f))
		}
		return
	}

	jobs := make(chan int, workers)
	results := make(chan indexed, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- indexed{index: i, outcome: work(i, files[i])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-ctx.Done():
				// Undispatched files are handled by the tail loop below.
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]FileOutcome)
	next := 0
	for r := range results {
		pending[r.index] = r.outcome
		for {
			fo, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			emit(next, fo)
			next++
		}
	}

	for ; next < len(files); next++ {
		emit(next, work(next, files[next]))
	}
}
