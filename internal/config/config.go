package config

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/scheduler"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawl"

	// DefaultRootDirectory is where sink output is written.
	DefaultRootDirectory = "."

	// DefaultMaxConnections caps open connections to the crawled host.
	DefaultMaxConnections = 100

	// DefaultMaxWorkers bounds concurrent units of work.
	DefaultMaxWorkers = 5

	// DefaultStrategy is the concurrency strategy name.
	DefaultStrategy = "pool"

	// DefaultTimeout bounds one fetch attempt.
	DefaultTimeout = 5 * time.Second

	// DefaultRetryAttempts is the number of attempts per fetch.
	DefaultRetryAttempts = 3

	// DefaultRetryBackoff is the delay before the first retry.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultDrainGrace is how long in-flight work may finish after an
	// interrupt.
	DefaultDrainGrace = 10 * time.Second

	// DefaultMaxRestores is how often a target may fail in one run before
	// it is left for the next run.
	DefaultMaxRestores = 3

	// DefaultMaxBodySize caps a decoded response body.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// Sink names.
const (
	SinkText  = "text"
	SinkImage = "image"
)

// Checkpoint backend names.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds all options of a crawl. It is filled from the profile file
// and then from CLI flags.
//
// Design decision: We use a single flat struct instead of nested structs
// per component. Each flag maps to exactly one field, and the profile loader
// and the flag parser overwrite fields in the same way.
type Config struct {
	// Seed is the URL the crawl starts from.
	Seed string

	// RootDirectory is where the sink writes <domain>/<category>/<title>.
	RootDirectory string

	// MaxConnections caps open connections to the host.
	MaxConnections int

	// MaxWorkers bounds concurrent units of work.
	MaxWorkers int

	// Strategy is sequential, pool or cooperative.
	Strategy string

	// Timeout bounds one fetch attempt.
	Timeout time.Duration

	// RetryAttempts is the number of attempts per fetch.
	RetryAttempts int

	// RetryBackoff is the delay before the first retry. It doubles for
	// every further retry.
	RetryBackoff time.Duration

	// Container locates the content to store on every page.
	Container model.ContainerSpec

	// RedundantTitle is removed from page titles.
	RedundantTitle string

	// TitleSeparator splits titles into nested directories.
	TitleSeparator string

	// Category selects an element whose text becomes the first directory.
	Category model.ElementSpec

	// CycleDuration and PauseDuration pace the crawl: after every cycle of
	// activity admission pauses. Zero disables pacing.
	CycleDuration time.Duration
	PauseDuration time.Duration

	// CheckpointDir holds checkpoint files or the checkpoint database.
	CheckpointDir string

	// CheckpointBackend is json or sqlite.
	CheckpointBackend string

	// CheckpointInterval writes a checkpoint periodically. Zero only
	// writes the final checkpoint.
	CheckpointInterval time.Duration

	// DrainGrace is how long in-flight work may finish after an interrupt.
	DrainGrace time.Duration

	// MaxRestores is how often a target may fail in one run before it is
	// deferred to the next run. Zero means no limit.
	MaxRestores int

	// RequestsPerSecond limits the request rate. Zero means unlimited.
	RequestsPerSecond float64

	// MaxBodySize caps a decoded response body in bytes.
	MaxBodySize int64

	// Sink is text or image.
	Sink string

	// Headers are added to every request.
	Headers map[string]string

	// Cookie is sent with every request.
	Cookie string

	// UserAgents replaces the built-in user agent rotation when set.
	UserAgents []string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON.
	JSONLogs bool

	// ConfigFilePath is the explicit profile file path, if any.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		RootDirectory:     DefaultRootDirectory,
		MaxConnections:    DefaultMaxConnections,
		MaxWorkers:        DefaultMaxWorkers,
		Strategy:          DefaultStrategy,
		Timeout:           DefaultTimeout,
		RetryAttempts:     DefaultRetryAttempts,
		RetryBackoff:      DefaultRetryBackoff,
		CheckpointDir:     DefaultCheckpointDir(),
		CheckpointBackend: BackendJSON,
		DrainGrace:        DefaultDrainGrace,
		MaxRestores:       DefaultMaxRestores,
		MaxBodySize:       DefaultMaxBodySize,
		Sink:              SinkText,
		Headers:           make(map[string]string),
	}
}

// XDGDataDir returns the XDG data directory for sitecrawl.
// On Linux: ~/.local/share/sitecrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawl.
// On Linux: ~/.config/sitecrawl
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultCheckpointDir returns the directory checkpoints are kept in when
// none is configured.
func DefaultCheckpointDir() string {
	return filepath.Join(XDGDataDir(), "checkpoints")
}

// ApplySite copies the values set in site over c.
func (c *Config) ApplySite(site SiteConfig) {
	if site.Container != nil {
		c.Container = *site.Container
	}
	if site.Sink != "" {
		c.Sink = site.Sink
	}
	if site.Redundant != "" {
		c.RedundantTitle = site.Redundant
	}
	if site.Separator != "" {
		c.TitleSeparator = site.Separator
	}
	if site.Category != nil {
		c.Category = *site.Category
	}
	if site.Strategy != "" {
		c.Strategy = site.Strategy
	}
	if site.Workers != 0 {
		c.MaxWorkers = site.Workers
	}
	if site.Cookie != "" {
		c.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			c.Headers[k] = v
		}
	}
	if len(site.UserAgents) > 0 {
		c.UserAgents = append([]string(nil), site.UserAgents...)
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	if _, err := model.NormalizeTarget(c.Seed); err != nil {
		return errors.Join(ErrInvalidSeed, err)
	}
	if c.Container.IsZero() {
		return ErrNoContainer
	}
	if c.Container.Child.IsZero() {
		return ErrNoContainerChild
	}
	if c.MaxWorkers <= 0 {
		return ErrInvalidMaxWorkers
	}
	if c.MaxConnections <= 0 {
		return ErrInvalidMaxConnections
	}
	if _, err := scheduler.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RetryAttempts <= 0 {
		return ErrInvalidRetryAttempts
	}
	if c.RetryBackoff < 0 || c.CycleDuration < 0 || c.PauseDuration < 0 ||
		c.CheckpointInterval < 0 || c.DrainGrace < 0 {
		return ErrNegativeDuration
	}
	if c.MaxRestores < 0 {
		return ErrInvalidMaxRestores
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	switch c.Sink {
	case SinkText, SinkImage:
	default:
		return ErrUnknownSink
	}
	switch c.CheckpointBackend {
	case BackendJSON, BackendSQLite:
	default:
		return ErrUnknownBackend
	}
	return nil
}
