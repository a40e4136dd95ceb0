package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	separator = "================================================================================"
	divider   = "--------------------------------------------------------------------------------"

	// timeFormat is used for timestamps in text and Markdown output.
	timeFormat = "2006-01-02 15:04:05 MST"
)

// SimpleWriter outputs plain text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showSample lists pending targets in status reports.
	showSample bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithPendingSample lists sampled pending targets in status reports.
func WithPendingSample(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showSample = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showSample: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteStatus writes the saved state of a domain.
func (w *SimpleWriter) WriteStatus(status *Status) (int, error) {
	var sb strings.Builder

	sb.WriteString(separator + "\n")
	sb.WriteString("CRAWL STATUS\n")
	sb.WriteString(separator + "\n")
	fmt.Fprintf(&sb, "Domain:    %s\n", status.Domain)

	if !status.Found {
		sb.WriteString("State:     no checkpoint\n")
		sb.WriteString(separator + "\n")
		return io.WriteString(w.output, sb.String())
	}

	fmt.Fprintf(&sb, "State:     %s\n", stateText(status))
	if !status.SavedAt.IsZero() {
		fmt.Fprintf(&sb, "Saved:     %s\n", status.SavedAt.Local().Format(timeFormat))
	}
	fmt.Fprintf(&sb, "Explored:  %d\n", status.Explored)
	fmt.Fprintf(&sb, "Pending:   %d\n", status.Pending)
	fmt.Fprintf(&sb, "Progress:  %.1f%%\n", status.Progress())

	if w.showSample && len(status.PendingSample) > 0 {
		sb.WriteString(divider + "\n")
		sb.WriteString("PENDING\n")
		for _, target := range status.PendingSample {
			fmt.Fprintf(&sb, "  %s\n", target)
		}
		if more := status.Pending - len(status.PendingSample); more > 0 {
			fmt.Fprintf(&sb, "  ... and %d more\n", more)
		}
	}

	if len(status.Runs) > 0 {
		sb.WriteString(divider + "\n")
		sb.WriteString("RUNS\n")
		for _, run := range status.Runs {
			fmt.Fprintf(&sb, "  %s  %-11s  explored %d, pending %d  (%s)\n",
				run.StartedAt.Local().Format(timeFormat),
				runReason(run.Reason),
				run.Explored,
				run.Pending,
				shortID(run.ID),
			)
		}
	}

	sb.WriteString(separator + "\n")
	return io.WriteString(w.output, sb.String())
}

// WriteSummary writes the result of a crawl run.
func (w *SimpleWriter) WriteSummary(summary *Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString(separator + "\n")
	fmt.Fprintf(&sb, "CRAWL %s\n", strings.ToUpper(summary.Reason()))
	sb.WriteString(separator + "\n")
	fmt.Fprintf(&sb, "Domain:     %s\n", summary.Domain)
	fmt.Fprintf(&sb, "Seed:       %s\n", summary.Seed)
	if summary.Resumed {
		sb.WriteString("Resumed:    yes\n")
	}
	fmt.Fprintf(&sb, "Strategy:   %s (peak %d in flight)\n", summary.Strategy, summary.PeakInFlight)
	fmt.Fprintf(&sb, "Elapsed:    %s\n", summary.Elapsed.Round(time.Millisecond))
	sb.WriteString(divider + "\n")
	fmt.Fprintf(&sb, "Pages:      %d processed, %d explored, %d discarded\n", summary.Processed, summary.Explored, summary.Discarded)
	fmt.Fprintf(&sb, "Failures:   %d restored, %d deferred\n", summary.Restored, summary.Deferred)
	fmt.Fprintf(&sb, "Files:      %d written, %d already present\n", summary.Written, summary.Skipped)
	fmt.Fprintf(&sb, "Frontier:   %d explored, %d pending\n", summary.TotalExplored, summary.Pending)
	sb.WriteString(separator + "\n")

	if summary.Pending > 0 {
		sb.WriteString("Run the same command again to resume.\n")
	}

	return io.WriteString(w.output, sb.String())
}

func stateText(status *Status) string {
	if status.Complete() {
		return "complete"
	}
	return "in progress"
}

func runReason(reason string) string {
	if reason == "" {
		return "unfinished"
	}
	return reason
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
