package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawl/internal/frontier"
)

// dispatcher hands targets to pool workers. A worker that finds the
// frontier empty waits while other units are active, since they may still
// add links.
type dispatcher struct {
	store *frontier.Store

	mu     sync.Mutex
	cond   *sync.Cond
	active int
}

func newDispatcher(store *frontier.Store) *dispatcher {
	d := &dispatcher{store: store}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// next returns the next target. It reports false when ctx is done or when
// nothing is pending and no unit is active.
func (d *dispatcher) next(ctx context.Context) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return "", false
		}
		if target, ok := d.store.Take(); ok {
			d.active++
			return target, true
		}
		if d.active == 0 {
			d.cond.Broadcast()
			return "", false
		}
		d.cond.Wait()
	}
}

// done marks a unit finished and wakes waiting workers.
func (d *dispatcher) done() {
	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	d.cond.Broadcast()
}

// wake releases all waiting workers so they can observe cancellation.
func (d *dispatcher) wake() {
	d.mu.Lock()
	d.cond.Broadcast()
	d.mu.Unlock()
}

// runPool runs maxWorkers workers sharing one dispatcher.
func (s *Scheduler) runPool(ctx, workCtx context.Context) {
	d := newDispatcher(s.store)
	stop := context.AfterFunc(ctx, d.wake)
	defer stop()

	var g errgroup.Group
	for range s.maxWorkers {
		g.Go(func() error {
			for {
				if err := s.pacer.wait(ctx); err != nil {
					return nil
				}
				target, ok := d.next(ctx)
				if !ok {
					return nil
				}
				s.process(workCtx, target)
				d.done()
			}
		})
	}
	_ = g.Wait()
}
