package scheduler

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// runCooperative admits targets from a single loop. Each admitted target
// runs in its own goroutine holding one unit of a weighted semaphore; the
// loop fills free capacity, waits for the first completion and repeats.
func (s *Scheduler) runCooperative(ctx, workCtx context.Context) {
	sem := semaphore.NewWeighted(int64(s.maxWorkers))
	completions := make(chan struct{}, s.maxWorkers)
	running := 0

	for {
		for ctx.Err() == nil && sem.TryAcquire(1) {
			if err := s.pacer.wait(ctx); err != nil {
				sem.Release(1)
				break
			}
			target, ok := s.store.Take()
			if !ok {
				sem.Release(1)
				break
			}
			running++
			go func() {
				defer func() {
					sem.Release(1)
					completions <- struct{}{}
				}()
				s.process(workCtx, target)
			}()
		}

		if running == 0 {
			return
		}

		select {
		case <-completions:
			running--
		case <-ctx.Done():
			for running > 0 {
				<-completions
				running--
			}
			return
		}
	}
}
