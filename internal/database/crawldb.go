package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawl/internal/frontier"
)

// FileName is the database file created inside the checkpoint directory.
const FileName = "sitecrawl.db"

// timeLayout is fixed width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Frontier states stored in the frontier table.
const (
	statePending  = "pending"
	stateExplored = "explored"
)

// CrawlDB stores crawl checkpoints and run history in SQLite.
// It implements frontier.Checkpointer.
//
// Design decision: We use a single database file for all domains rather
// than one per domain. "status" can then list every crawled domain and its
// run history with one query, and a checkpoint save is one transaction.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB
}

var _ frontier.Checkpointer = (*CrawlDB)(nil)

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the crawl database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Frontier rows are the persisted checkpoint of each domain
	CREATE TABLE IF NOT EXISTS frontier (
		domain TEXT NOT NULL,
		url TEXT NOT NULL,
		state TEXT NOT NULL,
		PRIMARY KEY(domain, url)
	);

	CREATE INDEX IF NOT EXISTS idx_frontier_domain_state ON frontier(domain, state);

	-- Checkpoints records that a domain has a saved frontier, even an empty one
	CREATE TABLE IF NOT EXISTS checkpoints (
		domain TEXT PRIMARY KEY,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Crawl runs keep a history of every crawl of a domain
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		reason TEXT,
		pending INTEGER DEFAULT 0,
		explored INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON crawl_runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// Load returns the saved frontier of a domain. It implements
// frontier.Checkpointer.
func (cdb *CrawlDB) Load(ctx context.Context, domain string) (*frontier.Checkpoint, bool, error) {
	var savedAt string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT saved_at FROM checkpoints WHERE domain = ?`, domain,
	).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	rows, err := cdb.db.QueryContext(ctx,
		`SELECT url, state FROM frontier WHERE domain = ? ORDER BY url`, domain)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query frontier: %w", err)
	}
	defer rows.Close()

	cp := &frontier.Checkpoint{
		Pending:  make([]string, 0),
		Explored: make([]string, 0),
	}
	for rows.Next() {
		var url, state string
		if err := rows.Scan(&url, &state); err != nil {
			return nil, false, fmt.Errorf("failed to scan frontier row: %w", err)
		}
		switch state {
		case statePending:
			cp.Pending = append(cp.Pending, url)
		case stateExplored:
			cp.Explored = append(cp.Explored, url)
		default:
			return nil, false, fmt.Errorf("%w: unknown state %q for %s", frontier.ErrCorruptCheckpoint, state, url)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read frontier: %w", err)
	}

	return cp, true, nil
}

// Save replaces the saved frontier of a domain in a single transaction.
// It implements frontier.Checkpointer.
func (cdb *CrawlDB) Save(ctx context.Context, domain string, cp *frontier.Checkpoint) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM frontier WHERE domain = ?`, domain); err != nil {
		return fmt.Errorf("failed to clear frontier: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO frontier (domain, url, state) VALUES (?, ?, ?)
		ON CONFLICT(domain, url) DO UPDATE SET state = excluded.state`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	if cp != nil {
		for _, url := range cp.Pending {
			if _, err = stmt.ExecContext(ctx, domain, url, statePending); err != nil {
				return fmt.Errorf("failed to insert pending target: %w", err)
			}
		}
		// Explored rows go last so they win over a duplicate pending row.
		for _, url := range cp.Explored {
			if _, err = stmt.ExecContext(ctx, domain, url, stateExplored); err != nil {
				return fmt.Errorf("failed to insert explored target: %w", err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (domain, saved_at) VALUES (?, CURRENT_TIMESTAMP)
		ON CONFLICT(domain) DO UPDATE SET saved_at = CURRENT_TIMESTAMP`, domain); err != nil {
		return fmt.Errorf("failed to record checkpoint: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// CheckpointTime returns when the domain's checkpoint was last saved.
// The zero time means there is none.
func (cdb *CrawlDB) CheckpointTime(ctx context.Context, domain string) (time.Time, error) {
	var savedAt string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT saved_at FROM checkpoints WHERE domain = ?`, domain,
	).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	return parseTimestamp(savedAt), nil
}

// Run is one crawl of a domain.
type Run struct {
	// ID identifies the run.
	ID string `json:"id"`

	// Domain is the crawled host.
	Domain string `json:"domain"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended. Zero while the run is active or
	// when the process died without finishing it.
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Reason describes how the run ended, e.g. "completed" or "interrupted".
	Reason string `json:"reason,omitempty"`

	// Pending and Explored are the frontier sizes at the end of the run.
	Pending  int `json:"pending"`
	Explored int `json:"explored"`
}

// BeginRun records the start of a crawl and returns its ID.
func (cdb *CrawlDB) BeginRun(ctx context.Context, domain string) (string, error) {
	id := uuid.NewString()
	_, err := cdb.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, domain, started_at) VALUES (?, ?, ?)`,
		id, domain, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return id, nil
}

// FinishRun records how a crawl ended.
func (cdb *CrawlDB) FinishRun(ctx context.Context, id, reason string, pending, explored int) error {
	result, err := cdb.db.ExecContext(ctx,
		`UPDATE crawl_runs SET finished_at = ?, reason = ?, pending = ?, explored = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), reason, pending, explored, id)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("unknown run %s", id)
	}
	return nil
}

// ListRuns returns the runs of a domain, newest first. limit <= 0 means all.
func (cdb *CrawlDB) ListRuns(ctx context.Context, domain string, limit int) ([]Run, error) {
	query := `
	SELECT id, domain, started_at, finished_at, reason, pending, explored
	FROM crawl_runs
	WHERE domain = ?
	ORDER BY started_at DESC, rowid DESC
	`
	args := []any{domain}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started string
		var finished, reason sql.NullString
		if err := rows.Scan(&run.ID, &run.Domain, &started, &finished, &reason, &run.Pending, &run.Explored); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		if finished.Valid {
			run.FinishedAt = parseTimestamp(finished.String)
		}
		run.Reason = reason.String
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ListDomains returns every domain with a saved checkpoint.
func (cdb *CrawlDB) ListDomains(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT domain FROM checkpoints ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
