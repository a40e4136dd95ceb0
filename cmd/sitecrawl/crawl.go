package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/crawler"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/fetcher"
	"github.com/nao1215/sitecrawl/internal/frontier"
	"github.com/nao1215/sitecrawl/internal/log"
	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/pipeline"
	"github.com/nao1215/sitecrawl/internal/report"
	"github.com/nao1215/sitecrawl/internal/scheduler"
	"github.com/nao1215/sitecrawl/internal/sink"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a site and store the selected content",
		Long: `Crawl starts at the seed URL, follows links on the same domain and stores
the content selected on every page.

Content is located in two steps: every element matching --container, then
the elements matching --target inside it. Elements are written as
tag[attr=value][attr][!attr]. The text sink writes the target texts of a
page into <root>/<domain>/<category>/<title>.txt. The image sink downloads
the image each target points to.

Progress is checkpointed per domain. Interrupting the crawl (Ctrl+C) lets
in-flight pages finish for --drain-grace, saves the checkpoint and exits.
Running the same command again resumes the crawl.

Examples:
  # Store the paragraphs of every blog post
  sitecrawl crawl https://blog.example.com/ --container 'div[class=post-body]' --target p

  # Download gallery images from a lazy-loading attribute
  sitecrawl crawl https://example.com/gallery --sink image \
    --container 'div[class=gallery]' --target 'img' --source data-src

  # Strip a site suffix from titles and nest by " - "
  sitecrawl crawl https://example.com/ --container article --target p \
    --redundant ' | Example' --title-separator ' - '

  # Keep checkpoints and run history in SQLite
  sitecrawl crawl https://example.com/ --checkpoint-backend sqlite

Settings can also come from a .sitecrawl profile (see "sitecrawl init").
Flags override the profile.`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()

	// Content selection
	f.StringP("root", "r", config.DefaultRootDirectory, "Directory the content is written to")
	f.String("container", "", "Parent element containing the content, e.g. 'div[class=post-body]'")
	f.String("target", "", "Content element inside the container, e.g. 'p' or 'img'")
	f.String("source", "", "Attribute holding the image URL (default src)")
	f.String("sink", config.SinkText, "Output kind: text or image")
	f.String("redundant", "", "Substring removed from page titles")
	f.String("title-separator", "", "Splits page titles into nested directories")
	f.String("category", "", "Element whose text becomes the top directory")

	// Concurrency
	f.StringP("strategy", "s", config.DefaultStrategy, "Concurrency strategy: sequential, pool or cooperative")
	f.IntP("workers", "w", config.DefaultMaxWorkers, "Maximum pages processed at once")
	f.Int("max-connections", config.DefaultMaxConnections, "Maximum open connections to the site")
	f.Duration("cycle", 0, "Pause admission after this much activity (0 disables pacing)")
	f.Duration("pause", 0, "Length of the pause after each cycle")
	f.Float64("rate", 0, "Maximum requests per second (0 is unlimited)")

	// Fetching
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each request attempt")
	f.Int("retries", config.DefaultRetryAttempts, "Attempts per request")
	f.Duration("retry-backoff", config.DefaultRetryBackoff, "Delay before the first retry, doubled for each further retry")
	f.Int64("max-body-size", config.DefaultMaxBodySize, "Maximum response body size in bytes")
	f.StringArrayP("header", "H", nil, "Extra request header as 'Name: value' (repeatable)")
	f.String("cookie", "", "Cookie header sent with every request")

	// Checkpointing
	f.String("checkpoint-dir", config.DefaultCheckpointDir(), "Directory for checkpoints")
	f.String("checkpoint-backend", config.BackendJSON, "Checkpoint backend: json or sqlite")
	f.Duration("checkpoint-interval", 0, "Write a checkpoint periodically (0 writes only at the end)")
	f.Duration("drain-grace", config.DefaultDrainGrace, "How long in-flight pages may finish after an interrupt")
	f.Int("max-restores", config.DefaultMaxRestores, "Failures per page before it is left for the next run (0 is unlimited)")

	// Configuration and output
	f.StringP("config", "c", "", "Profile path (default: .sitecrawl in current or home directory)")
	f.Bool("json-logs", false, "Write logs as JSON")
	f.BoolP("json", "j", false, "Print the summary as JSON")
	f.BoolP("markdown", "m", false, "Print the summary as Markdown")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted: finishing in-flight pages and saving the checkpoint...")
			cancel()
		case <-ctx.Done():
		}
	}()

	_, err = runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), reportFormat(cmd))
	return err
}

// newLogger builds the logger selected by the configuration.
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.JSONLogs {
		return log.NewJSONLogger(os.Stderr, cfg.Verbose)
	}
	return log.NewLogger(os.Stderr, cfg.Verbose)
}

// reportFormat returns the summary format selected by --json or --markdown.
func reportFormat(cmd *cobra.Command) string {
	if ok, _ := cmd.Flags().GetBool("json"); ok {
		return report.FormatJSON
	}
	if ok, _ := cmd.Flags().GetBool("markdown"); ok {
		return report.FormatMarkdown
	}
	return report.FormatText
}

// buildConfig creates a Config from defaults, the profile file and flags,
// in increasing priority.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Seed = args[0]
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := applyProfile(cfg); err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyProfile copies the profile settings of the seed's domain into cfg.
// A missing profile is only an error when its path was given explicitly.
func applyProfile(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", path, err)
	}

	seed, err := model.NormalizeTarget(cfg.Seed)
	if err != nil {
		// Validate reports the bad seed.
		return nil
	}
	domain, err := model.Domain(seed)
	if err != nil {
		return nil
	}
	cfg.ApplySite(file.GetSiteConfig(domain))
	return nil
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()

	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	element := func(name string, dst *model.ElementSpec) func() error {
		return func() error {
			raw, err := f.GetString(name)
			if err != nil {
				return err
			}
			spec, err := model.ParseElementSpec(raw)
			if err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
			*dst = spec
			return nil
		}
	}

	set("root", func() (e error) { cfg.RootDirectory, e = f.GetString("root"); return })
	set("container", element("container", &cfg.Container.Parent))
	set("target", element("target", &cfg.Container.Child))
	set("source", func() (e error) { cfg.Container.Source, e = f.GetString("source"); return })
	set("sink", func() (e error) { cfg.Sink, e = f.GetString("sink"); return })
	set("redundant", func() (e error) { cfg.RedundantTitle, e = f.GetString("redundant"); return })
	set("title-separator", func() (e error) { cfg.TitleSeparator, e = f.GetString("title-separator"); return })
	set("category", element("category", &cfg.Category))

	set("strategy", func() (e error) { cfg.Strategy, e = f.GetString("strategy"); return })
	set("workers", func() (e error) { cfg.MaxWorkers, e = f.GetInt("workers"); return })
	set("max-connections", func() (e error) { cfg.MaxConnections, e = f.GetInt("max-connections"); return })
	set("cycle", func() (e error) { cfg.CycleDuration, e = f.GetDuration("cycle"); return })
	set("pause", func() (e error) { cfg.PauseDuration, e = f.GetDuration("pause"); return })
	set("rate", func() (e error) { cfg.RequestsPerSecond, e = f.GetFloat64("rate"); return })

	set("timeout", func() (e error) { cfg.Timeout, e = f.GetDuration("timeout"); return })
	set("retries", func() (e error) { cfg.RetryAttempts, e = f.GetInt("retries"); return })
	set("retry-backoff", func() (e error) { cfg.RetryBackoff, e = f.GetDuration("retry-backoff"); return })
	set("max-body-size", func() (e error) { cfg.MaxBodySize, e = f.GetInt64("max-body-size"); return })
	set("header", func() error {
		headers, err := f.GetStringArray("header")
		if err != nil {
			return err
		}
		return parseHeaders(headers, cfg.Headers)
	})
	set("cookie", func() (e error) { cfg.Cookie, e = f.GetString("cookie"); return })

	set("checkpoint-dir", func() (e error) { cfg.CheckpointDir, e = f.GetString("checkpoint-dir"); return })
	set("checkpoint-backend", func() (e error) { cfg.CheckpointBackend, e = f.GetString("checkpoint-backend"); return })
	set("checkpoint-interval", func() (e error) { cfg.CheckpointInterval, e = f.GetDuration("checkpoint-interval"); return })
	set("drain-grace", func() (e error) { cfg.DrainGrace, e = f.GetDuration("drain-grace"); return })
	set("max-restores", func() (e error) { cfg.MaxRestores, e = f.GetInt("max-restores"); return })

	set("json-logs", func() (e error) { cfg.JSONLogs, e = f.GetBool("json-logs"); return })

	return err
}

// parseHeaders adds "Name: value" pairs to dst.
func parseHeaders(headers []string, dst map[string]string) error {
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid header %q: expected 'Name: value'", h)
		}
		dst[name] = strings.TrimSpace(value)
	}
	return nil
}

// checkpointStore is a checkpoint backend with an optional run history.
type checkpointStore struct {
	frontier.Checkpointer

	db    *database.CrawlDB
	runID string
}

// openCheckpointStore opens the configured backend.
func openCheckpointStore(cfg *config.Config) (*checkpointStore, error) {
	if cfg.CheckpointBackend != config.BackendSQLite {
		return &checkpointStore{Checkpointer: frontier.NewFileCheckpointer(cfg.CheckpointDir)}, nil
	}
	db, err := database.Open(cfg.CheckpointDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	return &checkpointStore{Checkpointer: db, db: db}, nil
}

func (c *checkpointStore) beginRun(ctx context.Context, domain string, logger *slog.Logger) {
	if c.db == nil {
		return
	}
	id, err := c.db.BeginRun(ctx, domain)
	if err != nil {
		logger.Error("failed to record crawl run", "error", err)
		return
	}
	c.runID = id
}

func (c *checkpointStore) finishRun(ctx context.Context, summary *report.Summary, logger *slog.Logger) {
	if c.db == nil || c.runID == "" {
		return
	}
	if err := c.db.FinishRun(ctx, c.runID, summary.Reason(), summary.Pending, summary.TotalExplored); err != nil {
		logger.Error("failed to record crawl run", "error", err)
	}
}

func (c *checkpointStore) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// newSink builds the configured sink.
func newSink(cfg *config.Config, client *fetcher.Client, logger *slog.Logger) sink.Sink {
	if cfg.Sink == config.SinkImage {
		return sink.NewImageSink(cfg.RootDirectory, client,
			sink.WithImageConcurrency(cfg.MaxWorkers),
			sink.WithImageLogger(logger),
		)
	}
	return sink.NewTextSink(cfg.RootDirectory, sink.WithTextLogger(logger))
}

// newFetcher builds the fetch client from the configuration.
func newFetcher(cfg *config.Config, logger *slog.Logger) *fetcher.Client {
	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithMaxConnections(cfg.MaxConnections),
		fetcher.WithRetryAttempts(cfg.RetryAttempts),
		fetcher.WithRetryBackoff(cfg.RetryBackoff),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithHeaders(cfg.Headers),
		fetcher.WithCookie(cfg.Cookie),
		fetcher.WithRateLimit(cfg.RequestsPerSecond),
		fetcher.WithLogger(logger),
	}
	if len(cfg.UserAgents) > 0 {
		opts = append(opts, fetcher.WithUserAgents(cfg.UserAgents))
	}
	return fetcher.New(opts...)
}

// runCrawl crawls the configured site until it is done or ctx is
// cancelled, then prints the summary to out. The checkpoint is written on
// every exit path once the frontier is loaded.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, format string) (summary *report.Summary, err error) {
	strategy, err := scheduler.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	cps, err := openCheckpointStore(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cps.Close(); cerr != nil {
			logger.Error("failed to close checkpoint database", "error", cerr)
		}
	}()

	store, resumed, err := frontier.Load(ctx, cps, cfg.Seed)
	if err != nil {
		if errors.Is(err, frontier.ErrCorruptCheckpoint) {
			return nil, fmt.Errorf("cannot resume: %w", err)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	domain := store.Domain()

	defer func() {
		if perr := store.Persist(context.WithoutCancel(ctx), cps); perr != nil {
			logger.Error("failed to write checkpoint", "domain", domain, "error", perr)
			if err == nil {
				err = fmt.Errorf("failed to write checkpoint: %w", perr)
			}
		}
	}()

	cps.beginRun(ctx, domain, logger)

	client := newFetcher(cfg, logger)
	defer client.CloseIdleConnections()

	unit := pipeline.NewCrawl(pipeline.Config{
		Fetcher:   client,
		Frontier:  store,
		Sink:      newSink(cfg, client, logger),
		Container: cfg.Container,
		PathOptions: crawler.PathOptions{
			Redundant: cfg.RedundantTitle,
			Separator: cfg.TitleSeparator,
			Category:  cfg.Category,
		},
		Logger: logger,
	})

	s := scheduler.New(store, unit,
		scheduler.WithStrategy(strategy),
		scheduler.WithMaxWorkers(cfg.MaxWorkers),
		scheduler.WithMaxRestores(cfg.MaxRestores),
		scheduler.WithPacing(cfg.CycleDuration, cfg.PauseDuration),
		scheduler.WithCheckpointer(cps),
		scheduler.WithCheckpointInterval(cfg.CheckpointInterval),
		scheduler.WithDrainGrace(cfg.DrainGrace),
		scheduler.WithLogger(logger),
	)

	if format == report.FormatText {
		if resumed {
			st := store.Stats()
			fmt.Fprintf(out, "Resuming %s: %d explored, %d pending\n", domain, st.Explored, st.Pending)
		} else {
			fmt.Fprintf(out, "Crawling %s from %s\n", domain, cfg.Seed)
		}
	}

	stats, runErr := s.Run(ctx)

	summary = report.NewSummary(domain, cfg.Seed, strategy.String(), resumed, stats)
	cps.finishRun(context.WithoutCancel(ctx), summary, logger)

	if _, werr := report.NewWriter(format, out).WriteSummary(summary); werr != nil {
		logger.Error("failed to write summary", "error", werr)
	}

	return summary, runErr
}
