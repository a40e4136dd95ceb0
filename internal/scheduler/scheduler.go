package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
)

// Default scheduler settings.
const (
	// DefaultMaxWorkers bounds concurrent units for Pool and Cooperative.
	DefaultMaxWorkers = 5

	// DefaultDrainGrace is how long in-flight units may run after
	// cancellation before they are cancelled too.
	DefaultDrainGrace = 10 * time.Second

	// DefaultMaxRestores is how often one target may be restored in a run
	// before it is deferred to the next run.
	DefaultMaxRestores = 3
)

// Processor runs the unit of work for one page. *pipeline.Pipeline
// implements it.
type Processor interface {
	Execute(ctx context.Context, page *model.Page) error
}

// Stats summarizes a run.
type Stats struct {
	// Processed is the number of units run.
	Processed int64

	// Explored, Discarded, Restored and Deferred count unit outcomes.
	Explored  int64
	Discarded int64
	Restored  int64
	Deferred  int64

	// Written and Skipped count sink files.
	Written int64
	Skipped int64

	// Frontier is the frontier size when the stats were taken.
	Frontier frontier.Stats

	// PeakInFlight is the highest number of concurrent units observed.
	PeakInFlight int

	// Elapsed is the run duration.
	Elapsed time.Duration

	// Interrupted reports that the run ended by cancellation with work left.
	Interrupted bool
}

// Scheduler runs units of work over a frontier.
//
// Design decision: We keep the outcome handling (explore, restore, defer)
// in the scheduler rather than in the pipeline steps because:
// 1. Every strategy must retire targets the same way
// 2. Steps stay unaware of the frontier sets except for adding links
// 3. Restore counting needs state that outlives a single unit
type Scheduler struct {
	// store is the frontier of the crawled domain.
	store *frontier.Store

	// processor runs one unit of work, normally a *pipeline.Pipeline.
	processor Processor

	strategy    Strategy
	maxWorkers  int
	maxRestores int

	// pacer pauses admission between activity cycles. nil disables pacing.
	pacer *pacer

	checkpointer       frontier.Checkpointer
	checkpointInterval time.Duration
	drainGrace         time.Duration

	logger *slog.Logger

	// state holds a State and moves forward only.
	state atomic.Int32

	// inflight counts units between Take and retirement.
	inflight     atomic.Int32
	peakInFlight atomic.Int32

	// Run counters reported through Stats.
	processed atomic.Int64
	explored  atomic.Int64
	discarded atomic.Int64
	restored  atomic.Int64
	deferred  atomic.Int64
	written   atomic.Int64
	skipped   atomic.Int64

	// restores counts restores per target in this run.
	restoresMu sync.Mutex
	restores   map[string]int

	started time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStrategy selects the concurrency strategy. The default is Pool.
func WithStrategy(strategy Strategy) Option {
	return func(s *Scheduler) {
		s.strategy = strategy
	}
}

// WithMaxWorkers bounds the number of concurrent units.
func WithMaxWorkers(n int) Option {
	return func(s *Scheduler) {
		s.maxWorkers = n
	}
}

// WithMaxRestores sets how often a target may be restored in one run before
// it is deferred. Zero or less means no limit.
func WithMaxRestores(n int) Option {
	return func(s *Scheduler) {
		s.maxRestores = n
	}
}

// WithPacing pauses admission for pause after every cycle of activity.
// Either value being zero disables pacing.
func WithPacing(cycle, pause time.Duration) Option {
	return func(s *Scheduler) {
		s.pacer = newPacer(cycle, pause)
	}
}

// WithCheckpointer sets where checkpoints are written. Without one the run
// keeps no state.
func WithCheckpointer(cp frontier.Checkpointer) Option {
	return func(s *Scheduler) {
		s.checkpointer = cp
	}
}

// WithCheckpointInterval writes a checkpoint every interval while running.
func WithCheckpointInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		s.checkpointInterval = interval
	}
}

// WithDrainGrace sets how long in-flight units may continue after
// cancellation. Zero cancels them immediately.
func WithDrainGrace(grace time.Duration) Option {
	return func(s *Scheduler) {
		s.drainGrace = grace
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates a Scheduler over store running p for every target.
func New(store *frontier.Store, p Processor, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:       store,
		processor:   p,
		strategy:    Pool,
		maxWorkers:  DefaultMaxWorkers,
		maxRestores: DefaultMaxRestores,
		pacer:       newPacer(0, 0),
		drainGrace:  DefaultDrainGrace,
		logger:      slog.Default(),
		restores:    make(map[string]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.maxWorkers < 1 {
		s.maxWorkers = 1
	}

	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Run crawls until the frontier has no pending target and nothing is in
// flight, or until ctx is cancelled and in-flight work has drained. It
// always writes a final checkpoint. The returned error reports checkpoint
// failures; an interrupted run is reported through Stats.Interrupted.
func (s *Scheduler) Run(ctx context.Context) (Stats, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return Stats{}, ErrAlreadyStarted
	}
	s.started = time.Now()

	s.logger.Info("crawl started",
		"domain", s.store.Domain(),
		"strategy", s.strategy.String(),
		"workers", s.maxWorkers,
		"pending", s.store.Stats().Pending,
	)

	// Design decision: Units run on workCtx, which outlives ctx by the drain
	// grace. Cancelling ctx only stops admission, so a page that is already
	// downloading can finish and be marked explored instead of being fetched
	// again on the next run.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	finished := make(chan struct{})
	stopDrain := context.AfterFunc(ctx, func() {
		// Run may already have stopped; never move the state back.
		if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
			return
		}
		s.logger.Warn("draining", "in_flight", s.inflight.Load(), "grace", s.drainGrace)
		if s.drainGrace <= 0 {
			cancelWork()
			return
		}
		timer := time.NewTimer(s.drainGrace)
		defer timer.Stop()
		select {
		case <-timer.C:
			s.logger.Warn("drain grace expired, cancelling in-flight work", "in_flight", s.inflight.Load())
			cancelWork()
		case <-finished:
		}
	})

	stopCheckpoints := s.startCheckpoints(ctx)

	switch s.strategy {
	case Sequential:
		s.runSequential(ctx, workCtx)
	case Cooperative:
		s.runCooperative(ctx, workCtx)
	default:
		s.runPool(ctx, workCtx)
	}

	close(finished)
	stopDrain()
	stopCheckpoints()

	err := s.persist(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("failed to write final checkpoint", "error", err)
	}

	s.setState(StateStopped)
	stats := s.Stats()
	stats.Interrupted = ctx.Err() != nil && (stats.Frontier.Pending > 0 || stats.Frontier.InFlight > 0)

	s.logger.Info("crawl finished",
		"domain", s.store.Domain(),
		"explored", stats.Frontier.Explored,
		"pending", stats.Frontier.Pending,
		"deferred", stats.Frontier.Deferred,
		"written", stats.Written,
		"interrupted", stats.Interrupted,
		"elapsed", stats.Elapsed.Round(time.Millisecond),
	)

	return stats, err
}

// Stats returns a snapshot of the run counters.
func (s *Scheduler) Stats() Stats {
	var elapsed time.Duration
	if !s.started.IsZero() {
		elapsed = time.Since(s.started)
	}
	return Stats{
		Processed:    s.processed.Load(),
		Explored:     s.explored.Load(),
		Discarded:    s.discarded.Load(),
		Restored:     s.restored.Load(),
		Deferred:     s.deferred.Load(),
		Written:      s.written.Load(),
		Skipped:      s.skipped.Load(),
		Frontier:     s.store.Stats(),
		PeakInFlight: int(s.peakInFlight.Load()),
		Elapsed:      elapsed,
	}
}

func (s *Scheduler) persist(ctx context.Context) error {
	if s.checkpointer == nil {
		return nil
	}
	if err := s.store.Persist(ctx, s.checkpointer); err != nil {
		return err
	}
	s.logger.Debug("checkpoint written", "domain", s.store.Domain())
	return nil
}

// startCheckpoints writes checkpoints periodically until the returned
// function is called.
func (s *Scheduler) startCheckpoints(ctx context.Context) func() {
	if s.checkpointer == nil || s.checkpointInterval <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.checkpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.persist(context.WithoutCancel(ctx)); err != nil {
					s.logger.Error("failed to write checkpoint", "error", err)
				}
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}

// process runs the unit of work for one target and settles the target in
// the frontier.
func (s *Scheduler) process(ctx context.Context, target string) {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		peak := s.peakInFlight.Load()
		if n <= peak || s.peakInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	s.processed.Add(1)
	stats := s.store.Stats()
	s.logger.Info("crawling", "target", target, "remaining", stats.Pending, "finished", stats.Explored)

	page := model.NewPage(target, s.store.Domain())
	err := s.execute(ctx, page)
	s.written.Add(int64(page.Written))
	s.skipped.Add(int64(page.Skipped))

	switch {
	case err == nil:
		s.store.MarkExplored(target)
		s.explored.Add(1)
	case errors.Is(err, pipeline.ErrDiscard):
		s.store.MarkExplored(target)
		s.discarded.Add(1)
	default:
		s.restore(target, err)
	}
}

// execute runs the processor and turns a panic into an error.
func (s *Scheduler) execute(ctx context.Context, page *model.Page) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return s.processor.Execute(ctx, page)
}

func (s *Scheduler) restore(target string, cause error) {
	s.restoresMu.Lock()
	s.restores[target]++
	count := s.restores[target]
	s.restoresMu.Unlock()

	if s.maxRestores > 0 && count > s.maxRestores {
		s.store.Defer(target)
		s.deferred.Add(1)
		s.logger.Warn("deferring target to next run", "target", target, "restores", count-1, "error", cause)
		return
	}

	s.store.Restore(target)
	s.restored.Add(1)
	s.logger.Warn("restoring target", "target", target, "error", cause)
}
