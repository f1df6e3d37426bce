package mirror

import (
	"context"
	"sync"
)

// Pool runs one function per Target across a fixed number of workers.
// Targets are drained from a single FIFO queue; each is handled end-to-end
// by exactly one worker and its result captured as an Outcome. Run blocks
// until every enqueued Target has been processed.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given concurrency. Values below 1 are
// treated as 1.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the pool's concurrency.
func (p *Pool) Workers() int { return p.workers }

type job struct {
	index  int
	target Target
}

// Run processes every target through fn and returns the outcomes in input
// order. No target blocks another except through shared filesystem state;
// a failing target is reported in its Outcome and never aborts the rest.
func (p *Pool) Run(ctx context.Context, targets []Target, fn func(context.Context, Target) Outcome) []Outcome {
	outcomes := make([]Outcome, len(targets))
	queue := make(chan job)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				outcomes[j.index] = fn(ctx, j.target)
			}
		}()
	}

	for i, t := range targets {
		queue <- job{index: i, target: t}
	}
	close(queue)

	wg.Wait()
	return outcomes
}
