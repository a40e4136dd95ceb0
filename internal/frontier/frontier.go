package frontier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nao1215/sitecrawl/internal/model"
)

// Store holds the crawl frontier of one domain.
//
// A target lives in exactly one of four sets: pending (waiting to be
// fetched), inflight (handed out by Take and not yet retired), deferred
// (failed too often, left for a later run) or explored (retired). Every
// method is safe for concurrent use.
type Store struct {
	// domain is the host every target belongs to.
	domain string

	// mu serializes all access to the sets below.
	mu sync.Mutex

	pending  map[string]struct{}
	inflight map[string]struct{}
	deferred map[string]struct{}
	explored map[string]struct{}

	// persistMu keeps checkpoint writes from interleaving.
	persistMu sync.Mutex
}

// Stats is a point-in-time count of the frontier sets.
type Stats struct {
	Pending  int
	InFlight int
	Deferred int
	Explored int
}

// New creates an empty Store for domain.
func New(domain string) *Store {
	return &Store{
		domain:   domain,
		pending:  make(map[string]struct{}),
		inflight: make(map[string]struct{}),
		deferred: make(map[string]struct{}),
		explored: make(map[string]struct{}),
	}
}

// Load builds the Store for the seed URL's domain.
//
// When cp has no checkpoint for the domain the Store starts fresh with only
// the seed pending, and found is false. A corrupt checkpoint is an error:
// resuming from an unknown frontier would either lose the explored record or
// re-crawl the whole site.
func Load(ctx context.Context, cp Checkpointer, seed string) (store *Store, found bool, err error) {
	target, err := model.NormalizeTarget(seed)
	if err != nil {
		return nil, false, fmt.Errorf("invalid seed URL: %w", err)
	}
	domain, err := model.Domain(target)
	if err != nil {
		return nil, false, fmt.Errorf("invalid seed URL: %w", err)
	}

	store = New(domain)
	if cp == nil {
		store.Add(target)
		return store, false, nil
	}

	checkpoint, found, err := cp.Load(ctx, domain)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load checkpoint for %s: %w", domain, err)
	}
	if !found {
		store.Add(target)
		return store, false, nil
	}

	if err := store.restoreFrom(checkpoint); err != nil {
		return nil, false, err
	}
	return store, true, nil
}

// restoreFrom fills an empty store from a checkpoint. Explored wins when a
// target appears in both lists.
//
// Entries that parse but can never be fetched, such as mailto:// links
// recorded by earlier versions, are dropped with a warning. Only entries
// that are not URLs at all make the checkpoint corrupt.
func (s *Store) restoreFrom(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, raw := range cp.Explored {
		target, err := restoreTarget(raw)
		if err != nil {
			return fmt.Errorf("%w: bad explored entry %q: %w", ErrCorruptCheckpoint, raw, err)
		}
		if target != "" {
			s.explored[target] = struct{}{}
		}
	}
	for _, raw := range cp.Pending {
		target, err := restoreTarget(raw)
		if err != nil {
			return fmt.Errorf("%w: bad pending entry %q: %w", ErrCorruptCheckpoint, raw, err)
		}
		if target == "" {
			continue
		}
		if _, done := s.explored[target]; !done {
			s.pending[target] = struct{}{}
		}
	}
	return nil
}

// restoreTarget normalizes a checkpoint entry. It returns "" and no error
// for entries that are valid URLs but not crawlable targets.
func restoreTarget(raw string) (string, error) {
	target, err := model.NormalizeTarget(raw)
	switch {
	case err == nil:
		return target, nil
	case errors.Is(err, model.ErrUnsupportedScheme),
		errors.Is(err, model.ErrMissingHost),
		errors.Is(err, model.ErrEmptyTarget):
		slog.Warn("dropping checkpoint entry that cannot be fetched", "entry", raw, "error", err)
		return "", nil
	default:
		return "", err
	}
}

// Domain returns the host the frontier is bound to.
func (s *Store) Domain() string {
	return s.domain
}

// Take removes an arbitrary pending target and marks it in flight.
// It reports false when nothing is pending.
func (s *Store) Take() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for target := range s.pending {
		delete(s.pending, target)
		s.inflight[target] = struct{}{}
		return target, true
	}
	return "", false
}

// MarkExplored retires a target. It will not be fetched again this run.
func (s *Store) MarkExplored(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, target)
	delete(s.inflight, target)
	delete(s.deferred, target)
	s.explored[target] = struct{}{}
}

// Restore puts a target back into pending after a failed attempt.
func (s *Store) Restore(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.explored, target)
	delete(s.inflight, target)
	delete(s.deferred, target)
	s.pending[target] = struct{}{}
}

// Defer sets a failed target aside: Take will not return it again, but it
// is saved as pending so the next run retries it.
func (s *Store) Defer(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, target)
	delete(s.inflight, target)
	delete(s.explored, target)
	s.deferred[target] = struct{}{}
}

// Add enqueues targets that are not already known and returns how many
// were new. Callers pass normalized same-domain targets.
func (s *Store) Add(targets ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, target := range targets {
		if s.knownLocked(target) {
			continue
		}
		s.pending[target] = struct{}{}
		added++
	}
	return added
}

// Contains reports whether the target is known in any set.
func (s *Store) Contains(target string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knownLocked(target)
}

func (s *Store) knownLocked(target string) bool {
	if _, ok := s.pending[target]; ok {
		return true
	}
	if _, ok := s.inflight[target]; ok {
		return true
	}
	if _, ok := s.deferred[target]; ok {
		return true
	}
	_, ok := s.explored[target]
	return ok
}

// Stats returns the current set sizes.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Pending:  len(s.pending),
		InFlight: len(s.inflight),
		Deferred: len(s.deferred),
		Explored: len(s.explored),
	}
}

// Snapshot copies the frontier into a Checkpoint. In-flight and deferred
// targets are recorded as pending so a crash never loses them. Lists are sorted to keep
// checkpoint files stable between writes.
func (s *Store) Snapshot() *Checkpoint {
	s.mu.Lock()
	pending := make([]string, 0, len(s.pending)+len(s.inflight)+len(s.deferred))
	for target := range s.pending {
		pending = append(pending, target)
	}
	for target := range s.inflight {
		pending = append(pending, target)
	}
	for target := range s.deferred {
		pending = append(pending, target)
	}
	explored := make([]string, 0, len(s.explored))
	for target := range s.explored {
		explored = append(explored, target)
	}
	s.mu.Unlock()

	sort.Strings(pending)
	sort.Strings(explored)
	return &Checkpoint{Pending: pending, Explored: explored}
}

// Persist writes a snapshot through cp. Concurrent calls are serialized and
// each one writes a snapshot taken after the previous write finished.
func (s *Store) Persist(ctx context.Context, cp Checkpointer) error {
	if cp == nil {
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := cp.Save(ctx, s.domain, s.Snapshot()); err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", s.domain, err)
	}
	return nil
}
