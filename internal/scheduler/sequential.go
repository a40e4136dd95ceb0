package scheduler

import "context"

// runSequential processes one target at a time until the frontier is empty
// or ctx is cancelled.
func (s *Scheduler) runSequential(ctx, workCtx context.Context) {
	for {
		if err := s.pacer.wait(ctx); err != nil {
			return
		}
		target, ok := s.store.Take()
		if !ok {
			return
		}
		s.process(workCtx, target)
	}
}
