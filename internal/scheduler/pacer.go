package scheduler

import (
	"context"
	"sync"
	"time"
)

// pacer pauses admission for pause after every cycle of activity.
type pacer struct {
	cycle time.Duration
	pause time.Duration

	mu    sync.Mutex
	start time.Time
	now   func() time.Time
}

func newPacer(cycle, pause time.Duration) *pacer {
	return &pacer{cycle: cycle, pause: pause, now: time.Now}
}

func (p *pacer) enabled() bool {
	return p.cycle > 0 && p.pause > 0
}

// wait returns at once while the current cycle lasts. Once it is over the
// first caller sleeps for the pause and starts a new cycle; concurrent
// callers wait behind it. It returns the context error if ctx ends first.
func (p *pacer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.enabled() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.start.IsZero() {
		p.start = now
	}
	if now.Sub(p.start) < p.cycle {
		return nil
	}

	timer := time.NewTimer(p.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	p.start = p.now()
	return nil
}
