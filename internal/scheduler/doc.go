// Package scheduler drives a crawl: it takes targets from the frontier,
// runs the unit of work for each one and writes checkpoints.
//
// # Strategies
//
//   - Sequential: one target at a time
//   - Pool: a fixed set of worker goroutines sharing one dispatcher
//   - Cooperative: a single admission loop starting one goroutine per
//     target, bounded by a weighted semaphore
//
// Pool and Cooperative never run more than MaxWorkers units at once.
//
// # Lifecycle
//
// A Scheduler moves through Idle, Running, Draining and Stopped. When the
// context passed to Run is cancelled it stops admitting work and waits for
// in-flight units. Those keep running for the drain grace period and are
// cancelled after it; a unit cut short restores its target. The final
// checkpoint is written on every exit path.
//
// # Outcomes
//
// A unit that succeeds, or fails with pipeline.ErrDiscard, retires its
// target. Any other failure, including a panic, restores the target so it is
// tried again. A target restored more than MaxRestores times in one run is
// deferred to the next run.
package scheduler
