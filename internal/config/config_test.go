package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitecrawl/internal/model"
	"github.com/nao1215/sitecrawl/internal/scheduler"
)

// TestNewConfig verifies the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default concurrency", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxWorkers != 5 {
			t.Errorf("expected MaxWorkers to be 5, got %d", cfg.MaxWorkers)
		}
		if cfg.MaxConnections != 100 {
			t.Errorf("expected MaxConnections to be 100, got %d", cfg.MaxConnections)
		}
		if cfg.Strategy != "pool" {
			t.Errorf("expected Strategy to be pool, got %q", cfg.Strategy)
		}
	})

	t.Run("default fetch settings", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected Timeout to be 5s, got %v", cfg.Timeout)
		}
		if cfg.RetryAttempts != 3 {
			t.Errorf("expected RetryAttempts to be 3, got %d", cfg.RetryAttempts)
		}
		if cfg.RetryBackoff != 100*time.Millisecond {
			t.Errorf("expected RetryBackoff to be 100ms, got %v", cfg.RetryBackoff)
		}
		if cfg.MaxBodySize != 10*1024*1024 {
			t.Errorf("expected MaxBodySize to be 10MB, got %d", cfg.MaxBodySize)
		}
	})

	t.Run("default checkpointing", func(t *testing.T) {
		t.Parallel()
		if cfg.CheckpointBackend != BackendJSON {
			t.Errorf("expected json backend, got %q", cfg.CheckpointBackend)
		}
		if cfg.CheckpointDir != filepath.Join(XDGDataDir(), "checkpoints") {
			t.Errorf("unexpected checkpoint dir %q", cfg.CheckpointDir)
		}
		if cfg.DrainGrace != 10*time.Second {
			t.Errorf("expected DrainGrace to be 10s, got %v", cfg.DrainGrace)
		}
		if cfg.CheckpointInterval != 0 {
			t.Errorf("expected no periodic checkpoint, got %v", cfg.CheckpointInterval)
		}
	})

	t.Run("default output", func(t *testing.T) {
		t.Parallel()
		if cfg.RootDirectory != "." || cfg.Sink != SinkText {
			t.Errorf("expected text sink in cwd, got %q in %q", cfg.Sink, cfg.RootDirectory)
		}
		if cfg.CycleDuration != 0 || cfg.PauseDuration != 0 {
			t.Error("expected pacing to be off")
		}
	})

	t.Run("default strategy parses", func(t *testing.T) {
		t.Parallel()
		if _, err := scheduler.ParseStrategy(cfg.Strategy); err != nil {
			t.Errorf("expected default strategy to parse, got %v", err)
		}
	})
}

// TestConfigValidate tests each validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Seed = "https://example.com/index.html"
		cfg.Container = model.ContainerSpec{
			Parent: model.ElementSpec{Tag: "div"},
			Child:  model.ElementSpec{Tag: "p"},
		}
		return cfg
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "no seed", modify: func(c *Config) { c.Seed = "" }, want: ErrNoSeed},
		{name: "bad seed", modify: func(c *Config) { c.Seed = "ftp://example.com/" }, want: ErrInvalidSeed},
		{name: "no container", modify: func(c *Config) { c.Container = model.ContainerSpec{} }, want: ErrNoContainer},
		{name: "no child", modify: func(c *Config) { c.Container.Child = model.ElementSpec{} }, want: ErrNoContainerChild},
		{name: "zero workers", modify: func(c *Config) { c.MaxWorkers = 0 }, want: ErrInvalidMaxWorkers},
		{name: "zero connections", modify: func(c *Config) { c.MaxConnections = 0 }, want: ErrInvalidMaxConnections},
		{name: "unknown strategy", modify: func(c *Config) { c.Strategy = "turbo" }, want: scheduler.ErrUnknownStrategy},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, want: ErrInvalidTimeout},
		{name: "zero attempts", modify: func(c *Config) { c.RetryAttempts = 0 }, want: ErrInvalidRetryAttempts},
		{name: "negative pause", modify: func(c *Config) { c.PauseDuration = -time.Second }, want: ErrNegativeDuration},
		{name: "negative grace", modify: func(c *Config) { c.DrainGrace = -time.Second }, want: ErrNegativeDuration},
		{name: "negative restores", modify: func(c *Config) { c.MaxRestores = -1 }, want: ErrInvalidMaxRestores},
		{name: "negative rate", modify: func(c *Config) { c.RequestsPerSecond = -1 }, want: ErrInvalidRate},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, want: ErrInvalidMaxBodySize},
		{name: "unknown sink", modify: func(c *Config) { c.Sink = "pdf" }, want: ErrUnknownSink},
		{name: "unknown backend", modify: func(c *Config) { c.CheckpointBackend = "redis" }, want: ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestFileGetSiteConfig tests merging defaults with site settings.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	container := &model.ContainerSpec{Parent: model.ElementSpec{Tag: "article"}, Child: model.ElementSpec{Tag: "img"}}

	file := &File{
		Defaults: SiteConfig{
			Sink:    SinkText,
			Cookie:  "default=abc",
			Headers: map[string]string{"X-Default": "1"},
		},
		Sites: map[string]SiteConfig{
			"Example.com": {
				Sink:      SinkImage,
				Container: container,
				Headers:   map[string]string{"X-Site": "2"},
			},
		},
	}

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		cfg := file.GetSiteConfig("unknown.test")
		if cfg.Sink != SinkText || cfg.Cookie != "default=abc" {
			t.Errorf("expected defaults, got %+v", cfg)
		}
		if cfg.Container != nil {
			t.Error("expected no container")
		}
	})

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		cfg := file.GetSiteConfig("example.com")
		if cfg.Sink != SinkImage {
			t.Errorf("expected image sink, got %q", cfg.Sink)
		}
		if cfg.Container != container {
			t.Error("expected site container")
		}
		if cfg.Cookie != "default=abc" {
			t.Errorf("expected default cookie to be kept, got %q", cfg.Cookie)
		}
		if cfg.Headers["X-Default"] != "1" || cfg.Headers["X-Site"] != "2" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
	})

	t.Run("merging does not touch defaults", func(t *testing.T) {
		t.Parallel()

		_ = file.GetSiteConfig("example.com")
		if _, ok := file.Defaults.Headers["X-Site"]; ok {
			t.Error("expected default headers to be unchanged")
		}
	})
}

// TestApplySite tests copying profile settings into a Config.
func TestApplySite(t *testing.T) {
	t.Parallel()

	category := model.ElementSpec{Tag: "span"}
	cfg := NewConfig()
	cfg.ApplySite(SiteConfig{
		Container:  &model.ContainerSpec{Parent: model.ElementSpec{Tag: "div"}, Child: model.ElementSpec{Tag: "p"}},
		Sink:       SinkImage,
		Redundant:  " | Site",
		Separator:  " - ",
		Category:   &category,
		Strategy:   "cooperative",
		Workers:    8,
		Cookie:     "a=b",
		Headers:    map[string]string{"Referer": "https://example.com/"},
		UserAgents: []string{"test-agent"},
	})

	if cfg.Container.Child.Tag != "p" || cfg.Sink != SinkImage {
		t.Errorf("expected container and sink, got %+v", cfg)
	}
	if cfg.RedundantTitle != " | Site" || cfg.TitleSeparator != " - " || cfg.Category.Tag != "span" {
		t.Errorf("expected title settings, got %q %q %v", cfg.RedundantTitle, cfg.TitleSeparator, cfg.Category)
	}
	if cfg.Strategy != "cooperative" || cfg.MaxWorkers != 8 {
		t.Errorf("expected concurrency settings, got %s/%d", cfg.Strategy, cfg.MaxWorkers)
	}
	if cfg.Cookie != "a=b" || cfg.Headers["Referer"] != "https://example.com/" || cfg.UserAgents[0] != "test-agent" {
		t.Errorf("expected request settings, got %+v", cfg)
	}

	t.Run("empty site keeps values", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplySite(SiteConfig{})
		if cfg.Strategy != DefaultStrategy || cfg.Sink != SinkText || !cfg.Container.IsZero() {
			t.Errorf("expected defaults, got %+v", cfg)
		}
	})
}

// TestLoadConfigFile tests reading profile files.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.sitecrawl")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawl")
		content := `defaults:
  strategy: sequential
sites:
  blog.example.com:
    container:
      parent: div[class=post-body]
      child: p
    redundant: " | Blog"
    category: span[class=category]
    headers:
      Authorization: "Bearer token"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.Strategy != "sequential" {
			t.Errorf("expected default strategy, got %q", cfg.Defaults.Strategy)
		}

		site := cfg.GetSiteConfig("blog.example.com")
		if site.Container == nil || site.Container.Parent.Attrs["class"].Value != "post-body" {
			t.Fatalf("expected container, got %+v", site.Container)
		}
		if site.Category == nil || site.Category.Tag != "span" {
			t.Errorf("expected category, got %+v", site.Category)
		}
		if site.Redundant != " | Blog" {
			t.Errorf("expected redundant title, got %q", site.Redundant)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawl")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".sitecrawl")
		if err := os.WriteFile(configPath, []byte("defaults:\n  workers: 2\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the profile search order.
func TestFindConfigFile(t *testing.T) {
	t.Run("returns explicit path if exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("finds file in current directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		t.Chdir(dir)

		if result := FindConfigFile(""); result != filepath.Join(dir, DefaultConfigFile) {
			t.Errorf("expected config in cwd, got %q", result)
		}
	})

	t.Run("ignores a directory with the profile name", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Mkdir(filepath.Join(dir, DefaultConfigFile), 0750); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		t.Chdir(dir)

		if result := FindConfigFile(""); result == filepath.Join(dir, DefaultConfigFile) {
			t.Errorf("expected the directory to be skipped, got %q", result)
		}
	})

	t.Run("searches cwd before xdg before home", func(t *testing.T) {
		paths := searchPaths()
		if len(paths) < 2 {
			t.Fatalf("expected at least 2 search paths, got %v", paths)
		}
		xdgPath := XDGConfigFile()
		idx := slices.Index(paths, xdgPath)
		if idx < 0 {
			t.Fatalf("expected %q in %v", xdgPath, paths)
		}
		if filepath.Base(paths[0]) != DefaultConfigFile || idx == 0 {
			t.Errorf("expected cwd profile first, got %v", paths)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end with %s, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %s, got %q", AppName, XDGConfigDir())
	}
	if filepath.Dir(DefaultCheckpointDir()) != XDGDataDir() {
		t.Errorf("expected checkpoint dir below data dir, got %q", DefaultCheckpointDir())
	}
}
