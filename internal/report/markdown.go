package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in GitHub flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// WriteStatus writes the saved state of a domain.
func (w *MarkdownWriter) WriteStatus(status *Status) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Status: " + status.Domain)
	md.PlainText("")

	if !status.Found {
		md.Note("No checkpoint found for this domain.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := [][]string{
		{"State", stateText(status)},
		{"Explored", strconv.Itoa(status.Explored)},
		{"Pending", strconv.Itoa(status.Pending)},
		{"Progress", strconv.FormatFloat(status.Progress(), 'f', 1, 64) + "%"},
	}
	if !status.SavedAt.IsZero() {
		rows = append(rows, []string{"Saved", status.SavedAt.Format(timeFormat)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if status.Pending+status.Explored > 0 {
		w.writePieChart(md, status)
	}

	if status.Complete() {
		md.Tip("The crawl is complete. Running it again fetches nothing.")
	} else {
		md.Importantf("%d target(s) left. Run the crawl again to resume.", status.Pending)
	}
	md.PlainText("")

	if len(status.PendingSample) > 0 {
		md.H2("Pending")
		md.PlainText("")
		items := make([]string, len(status.PendingSample))
		for i, target := range status.PendingSample {
			items[i] = "`" + target + "`"
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(status.Runs) > 0 {
		w.writeRuns(md, status)
	}

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, status *Status) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Frontier"),
		piechart.WithShowData(true),
	)
	if status.Explored > 0 {
		chart.LabelAndIntValue("Explored", uint64(status.Explored))
	}
	if status.Pending > 0 {
		chart.LabelAndIntValue("Pending", uint64(status.Pending))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeRuns(md *markdown.Markdown, status *Status) {
	md.H2("Runs")
	md.PlainText("")

	rows := make([][]string, len(status.Runs))
	for i, run := range status.Runs {
		finished := "-"
		if !run.FinishedAt.IsZero() {
			finished = run.FinishedAt.Format(timeFormat)
		}
		rows[i] = []string{
			"`" + shortID(run.ID) + "`",
			run.StartedAt.Format(timeFormat),
			finished,
			runReason(run.Reason),
			strconv.Itoa(run.Explored),
			strconv.Itoa(run.Pending),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Finished", "Result", "Explored", "Pending"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteSummary writes the result of a crawl run.
func (w *MarkdownWriter) WriteSummary(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Summary: " + summary.Domain)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + summary.Seed + "`"},
			{"Result", summary.Reason()},
			{"Strategy", summary.Strategy},
			{"Elapsed", summary.Elapsed.Round(time.Millisecond).String()},
			{"Processed", strconv.FormatInt(summary.Processed, 10)},
			{"Explored", strconv.FormatInt(summary.Explored, 10)},
			{"Discarded", strconv.FormatInt(summary.Discarded, 10)},
			{"Restored", strconv.FormatInt(summary.Restored, 10)},
			{"Deferred", strconv.FormatInt(summary.Deferred, 10)},
			{"Files written", strconv.FormatInt(summary.Written, 10)},
			{"Files skipped", strconv.FormatInt(summary.Skipped, 10)},
			{"Pending", strconv.Itoa(summary.Pending)},
		},
	})
	md.PlainText("")

	switch {
	case summary.Interrupted:
		md.Warningf("The crawl was interrupted with %d target(s) left. The checkpoint was saved.", summary.Pending)
	case summary.Deferred > 0:
		md.Cautionf("%d target(s) kept failing and were left for the next run.", summary.Deferred)
	default:
		md.Tip("All reachable pages were crawled.")
	}
	md.PlainText("")

	return len(md.String()), md.Build()
}
