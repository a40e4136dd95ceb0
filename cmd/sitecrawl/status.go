package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/report"
)

// defaultRunLimit is how many past runs status lists.
const defaultRunLimit = 5

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [domain|url]",
		Short: "Show the saved crawl state of a site",
		Long: `Status reads the checkpoint of a site and reports how many pages are
explored and how many are still pending. The SQLite backend also lists the
most recent runs.

Without an argument, status lists the domains that have a checkpoint.

Examples:
  sitecrawl status blog.example.com
  sitecrawl status https://blog.example.com/some/page --markdown
  sitecrawl status --checkpoint-backend sqlite`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}

	f := cmd.Flags()
	f.String("checkpoint-dir", config.DefaultCheckpointDir(), "Directory for checkpoints")
	f.String("checkpoint-backend", config.BackendJSON, "Checkpoint backend: json or sqlite")
	f.Int("sample", report.DefaultSampleSize, "Number of pending URLs to list")
	f.Int("runs", defaultRunLimit, "Number of past runs to list (sqlite backend)")
	f.BoolP("json", "j", false, "Print the status as JSON")
	f.BoolP("markdown", "m", false, "Print the status as Markdown")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	dir, _ := f.GetString("checkpoint-dir")
	backend, _ := f.GetString("checkpoint-backend")
	sample, _ := f.GetInt("sample")
	runs, _ := f.GetInt("runs")

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch backend {
	case config.BackendJSON, config.BackendSQLite:
	default:
		return fmt.Errorf("%w: %s", config.ErrUnknownBackend, backend)
	}

	if len(args) == 0 {
		domains, err := listDomains(ctx, dir, backend)
		if err != nil {
			return err
		}
		return writeDomains(out, domains)
	}

	domain, err := parseDomain(args[0])
	if err != nil {
		return err
	}

	var status *report.Status
	if backend == config.BackendSQLite {
		status, err = sqliteStatus(ctx, dir, domain, sample, runs)
	} else {
		status, err = fileStatus(ctx, dir, domain, sample)
	}
	if err != nil {
		return err
	}

	_, err = report.NewWriter(reportFormat(cmd), out).WriteStatus(status)
	return err
}

// parseDomain accepts a bare domain or any URL on it.
func parseDomain(arg string) (string, error) {
	if !strings.Contains(arg, "://") {
		arg = "https://" + arg
	}
	target, err := model.NormalizeTarget(arg)
	if err != nil {
		return "", fmt.Errorf("invalid domain %q: %w", arg, err)
	}
	return model.Domain(target)
}

func fileStatus(ctx context.Context, dir, domain string, sample int) (*report.Status, error) {
	fc := frontier.NewFileCheckpointer(dir)
	cp, found, err := fc.Load(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if !found {
		return report.NewStatus(domain, nil, sample), nil
	}

	status := report.NewStatus(domain, cp, sample)
	if info, err := os.Stat(fc.Path(domain)); err == nil {
		status.SavedAt = info.ModTime()
	}
	return status, nil
}

func sqliteStatus(ctx context.Context, dir, domain string, sample, runs int) (*report.Status, error) {
	db, err := openExistingDB(dir)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return report.NewStatus(domain, nil, sample), nil
	}
	defer db.Close()

	cp, found, err := db.Load(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if !found {
		cp = nil
	}
	status := report.NewStatus(domain, cp, sample)

	if found {
		if status.SavedAt, err = db.CheckpointTime(ctx, domain); err != nil {
			return nil, err
		}
	}
	if runs > 0 {
		if status.Runs, err = db.ListRuns(ctx, domain, runs); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// openExistingDB opens the checkpoint database, or returns nil when no
// crawl has created it yet.
func openExistingDB(dir string) (*database.CrawlDB, error) {
	path := filepath.Join(dir, database.FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	return db, nil
}

// listDomains returns the domains with a saved checkpoint.
func listDomains(ctx context.Context, dir, backend string) ([]string, error) {
	if backend == config.BackendSQLite {
		db, err := openExistingDB(dir)
		if err != nil || db == nil {
			return nil, err
		}
		defer db.Close()
		return db.ListDomains(ctx)
	}
	return frontier.NewFileCheckpointer(dir).Domains()
}

func writeDomains(out io.Writer, domains []string) error {
	if len(domains) == 0 {
		_, err := fmt.Fprintln(out, "No checkpoints found.")
		return err
	}
	for _, d := range domains {
		if _, err := fmt.Fprintln(out, d); err != nil {
			return err
		}
	}
	return nil
}
