package report

import (
	"slices"
	"time"

	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/scheduler"
)

// DefaultSampleSize is how many pending targets a status report lists.
const DefaultSampleSize = 10

// Status describes the saved crawl state of one domain.
type Status struct {
	// Domain is the crawled host.
	Domain string `json:"domain"`

	// Found reports whether a checkpoint exists.
	Found bool `json:"found"`

	// SavedAt is when the checkpoint was written, if known.
	SavedAt time.Time `json:"saved_at,omitzero"`

	// Pending and Explored are the checkpoint set sizes.
	Pending  int `json:"pending"`
	Explored int `json:"explored"`

	// PendingSample lists some pending targets in sorted order.
	PendingSample []string `json:"pending_sample,omitempty"`

	// Runs is the crawl history, newest first. Only the SQLite backend
	// keeps history.
	Runs []database.Run `json:"runs,omitempty"`
}

// NewStatus builds a Status from a loaded checkpoint. A nil checkpoint
// yields a status with Found unset.
func NewStatus(domain string, cp *frontier.Checkpoint, sampleSize int) *Status {
	s := &Status{Domain: domain}
	if cp == nil {
		return s
	}

	s.Found = true
	s.Pending = len(cp.Pending)
	s.Explored = len(cp.Explored)

	if sampleSize > 0 {
		sample := slices.Clone(cp.Pending)
		slices.Sort(sample)
		if len(sample) > sampleSize {
			sample = sample[:sampleSize]
		}
		s.PendingSample = sample
	}
	return s
}

// Complete reports whether nothing is left to crawl.
func (s *Status) Complete() bool {
	return s.Found && s.Pending == 0
}

// Progress returns the explored share of all known targets in percent.
func (s *Status) Progress() float64 {
	total := s.Pending + s.Explored
	if total == 0 {
		return 0
	}
	return float64(s.Explored) * 100 / float64(total)
}

// Summary describes a finished crawl run.
type Summary struct {
	// Domain is the crawled host.
	Domain string `json:"domain"`

	// Seed is the start URL.
	Seed string `json:"seed"`

	// Resumed reports whether the run started from a checkpoint.
	Resumed bool `json:"resumed"`

	// Strategy is the concurrency strategy used.
	Strategy string `json:"strategy"`

	// Unit outcome counts.
	Processed int64 `json:"processed"`
	Explored  int64 `json:"explored"`
	Discarded int64 `json:"discarded"`
	Restored  int64 `json:"restored"`
	Deferred  int64 `json:"deferred"`

	// Written and Skipped count sink files.
	Written int64 `json:"written"`
	Skipped int64 `json:"skipped"`

	// Frontier sizes at the end of the run.
	Pending       int `json:"pending"`
	TotalExplored int `json:"total_explored"`

	// PeakInFlight is the highest number of concurrent units.
	PeakInFlight int `json:"peak_in_flight"`

	// Elapsed is the run duration.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Interrupted reports that the run was cancelled with work left.
	Interrupted bool `json:"interrupted"`
}

// NewSummary builds a Summary from scheduler stats.
func NewSummary(domain, seed, strategy string, resumed bool, stats scheduler.Stats) *Summary {
	return &Summary{
		Domain:        domain,
		Seed:          seed,
		Resumed:       resumed,
		Strategy:      strategy,
		Processed:     stats.Processed,
		Explored:      stats.Explored,
		Discarded:     stats.Discarded,
		Restored:      stats.Restored,
		Deferred:      stats.Deferred,
		Written:       stats.Written,
		Skipped:       stats.Skipped,
		Pending:       stats.Frontier.Pending + stats.Frontier.InFlight + stats.Frontier.Deferred,
		TotalExplored: stats.Frontier.Explored,
		PeakInFlight:  stats.PeakInFlight,
		Elapsed:       stats.Elapsed,
		Interrupted:   stats.Interrupted,
	}
}

// Reason is the run end reason recorded in the run history.
func (s *Summary) Reason() string {
	switch {
	case s.Interrupted:
		return "interrupted"
	case s.Pending > 0:
		return "incomplete"
	default:
		return "completed"
	}
}
