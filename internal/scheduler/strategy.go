package scheduler

import (
	"fmt"
	"strings"
)

// Strategy selects how units of work are run.
type Strategy int

const (
	// Sequential runs one unit at a time.
	Sequential Strategy = iota

	// Pool runs a fixed number of worker goroutines.
	Pool

	// Cooperative starts a goroutine per unit from a single admission loop.
	Cooperative
)

// String returns the strategy name accepted by ParseStrategy.
func (s Strategy) String() string {
	switch s {
	case Sequential:
		return "sequential"
	case Pool:
		return "pool"
	case Cooperative:
		return "cooperative"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name. "thread" and "async" are accepted
// as aliases of pool and cooperative.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequential", "single":
		return Sequential, nil
	case "pool", "thread", "workers":
		return Pool, nil
	case "cooperative", "async", "tasks":
		return Cooperative, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// State is a position in the scheduler lifecycle.
type State int32

const (
	// StateIdle means Run has not been called.
	StateIdle State = iota

	// StateRunning means targets are being admitted.
	StateRunning

	// StateDraining means admission stopped and in-flight units are
	// finishing.
	StateDraining

	// StateStopped means Run returned.
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
