package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/crawlmd/internal/fetcher"
	"github.com/nao1215/crawlmd/internal/model"
)

func intPtr(v int) *int { return &v }

// TestNewConfig verifies that NewConfig returns the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default output dir is ./crawled", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "./crawled" {
			t.Errorf("expected OutputDir to be './crawled', got '%s'", cfg.OutputDir)
		}
	})

	t.Run("depth and pages are unlimited", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxDepth != -1 {
			t.Errorf("expected MaxDepth to be -1, got %d", cfg.MaxDepth)
		}
		if cfg.MaxPages != 0 {
			t.Errorf("expected MaxPages to be 0, got %d", cfg.MaxPages)
		}
	})

	t.Run("default delay is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.Delay != time.Second {
			t.Errorf("expected Delay to be 1s, got %v", cfg.Delay)
		}
	})

	t.Run("default fetch mode is static", func(t *testing.T) {
		t.Parallel()
		if cfg.FetchMode != fetcher.ModeStatic {
			t.Errorf("expected static fetch mode, got %q", cfg.FetchMode)
		}
	})

	t.Run("default batch size is sequential", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 1 {
			t.Errorf("expected BatchSize to be 1, got %d", cfg.BatchSize)
		}
	})

	t.Run("history is off by default", func(t *testing.T) {
		t.Parallel()
		if cfg.SaveHistory {
			t.Error("expected SaveHistory to be false")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir to be the XDG data dir, got %q", cfg.DBDir)
		}
	})

	t.Run("default config validates once a target is set", func(t *testing.T) {
		t.Parallel()
		c := NewConfig()
		c.Targets = []string{"https://example.com"}
		if err := c.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})
}

// TestConfigValidate tests each validation rule in isolation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		c := NewConfig()
		c.Targets = []string{"https://example.com"}
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no targets", mutate: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTarget},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative delay", mutate: func(c *Config) { c.Delay = -time.Second }, wantErr: ErrInvalidDelay},
		{name: "zero delay is fine", mutate: func(c *Config) { c.Delay = 0 }},
		{name: "negative settle", mutate: func(c *Config) { c.SettleDelay = -1 }, wantErr: ErrInvalidSettleDelay},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{
			name:    "dry run with pdfs only",
			mutate:  func(c *Config) { c.DryRun, c.PDFsOnly = true, true },
			wantErr: ErrConflictingModes,
		},
		{name: "unknown fetch mode", mutate: func(c *Config) { c.FetchMode = "curl" }, wantErr: ErrInvalidFetchMode},
		{name: "rendered fetch mode", mutate: func(c *Config) { c.FetchMode = fetcher.ModeRendered }},
		{name: "negative body size", mutate: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{
			name:    "report and no report",
			mutate:  func(c *Config) { c.NoReport, c.ReportFiles = true, []string{"r.csv"} },
			wantErr: ErrConflictingReportFlags,
		},
		{
			name:    "tor and proxy",
			mutate:  func(c *Config) { c.Tor, c.Proxy = true, "socks5://127.0.0.1:9050" },
			wantErr: ErrConflictingProxy,
		},
		{
			name:    "tor without startup timeout",
			mutate:  func(c *Config) { c.Tor, c.TorStartupTimeout = true, 0 },
			wantErr: ErrInvalidTorTimeout,
		},
		{name: "startup timeout ignored without tor", mutate: func(c *Config) { c.TorStartupTimeout = 0 }},
		{name: "negative depth is unlimited", mutate: func(c *Config) { c.MaxDepth = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tt.mutate(c)
			err := c.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestConfigMode tests mode selection from flags.
func TestConfigMode(t *testing.T) {
	t.Parallel()

	c := NewConfig()
	if c.Mode() != model.ModeFull {
		t.Errorf("expected full mode, got %s", c.Mode())
	}
	c.PDFsOnly = true
	if c.Mode() != model.ModePDFsOnly {
		t.Errorf("expected pdfs-only mode, got %s", c.Mode())
	}
	c.PDFsOnly, c.DryRun = false, true
	if c.Mode() != model.ModeDryRun {
		t.Errorf("expected dry-run mode, got %s", c.Mode())
	}
}

// TestFileGetSiteConfig tests the GetSiteConfig method.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	t.Run("returns defaults when site not found", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{
				MaxDepth: intPtr(3),
				Cookie:   "default_cookie=abc",
			},
			Sites: map[string]SiteConfig{},
		}

		cfg := file.GetSiteConfig("unknown.example.com")
		if cfg.MaxDepth == nil || *cfg.MaxDepth != 3 {
			t.Errorf("expected depth 3, got %v", cfg.MaxDepth)
		}
		if cfg.Cookie != "default_cookie=abc" {
			t.Errorf("expected default cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("site overrides defaults including zero depth", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{MaxDepth: intPtr(3), Cookie: "default_cookie=abc"},
			Sites: map[string]SiteConfig{
				"example.com": {MaxDepth: intPtr(0), Cookie: "session=xyz"},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.MaxDepth == nil || *cfg.MaxDepth != 0 {
			t.Errorf("expected depth 0, got %v", cfg.MaxDepth)
		}
		if cfg.Cookie != "session=xyz" {
			t.Errorf("expected site cookie, got %q", cfg.Cookie)
		}
	})

	t.Run("merges headers without mutating defaults", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Defaults: SiteConfig{Headers: map[string]string{"X-Default": "value1"}},
			Sites: map[string]SiteConfig{
				"example.com": {Headers: map[string]string{"X-Site": "value2"}},
			},
		}

		cfg := file.GetSiteConfig("example.com")
		if cfg.Headers["X-Default"] != "value1" || cfg.Headers["X-Site"] != "value2" {
			t.Errorf("expected merged headers, got %v", cfg.Headers)
		}
		if _, ok := file.Defaults.Headers["X-Site"]; ok {
			t.Error("expected defaults to be left untouched")
		}
	})

	t.Run("matches case-insensitively and ignores www", func(t *testing.T) {
		t.Parallel()

		file := &File{
			Sites: map[string]SiteConfig{
				"www.Example.com": {Cookie: "a=1"},
			},
		}

		if got := file.GetSiteConfig("example.com").Cookie; got != "a=1" {
			t.Errorf("expected cookie a=1, got %q", got)
		}
	})
}

// TestSettingsFor tests resolution of effective per-domain options.
func TestSettingsFor(t *testing.T) {
	t.Parallel()

	t.Run("global values without a config file", func(t *testing.T) {
		t.Parallel()

		c := NewConfig()
		c.MaxDepth = 2
		s := c.SettingsFor("example.com")
		if s.MaxDepth != 2 || s.Delay != time.Second || s.UserAgent != DefaultUserAgent {
			t.Errorf("unexpected settings %+v", s)
		}
	})

	t.Run("file values override globals", func(t *testing.T) {
		t.Parallel()

		delay := 250 * time.Millisecond
		c := NewConfig()
		c.SiteConfigs = &File{
			Defaults: SiteConfig{UserAgent: "custom/1.0"},
			Sites: map[string]SiteConfig{
				"docs.example.com": {
					MaxPages:       intPtr(10),
					Delay:          &delay,
					IgnorePatterns: []string{"/private/*"},
				},
			},
		}

		s := c.SettingsFor("docs.example.com")
		if s.UserAgent != "custom/1.0" {
			t.Errorf("expected custom user agent, got %q", s.UserAgent)
		}
		if s.MaxPages != 10 {
			t.Errorf("expected 10 pages, got %d", s.MaxPages)
		}
		if s.Delay != delay {
			t.Errorf("expected delay %v, got %v", delay, s.Delay)
		}
		if s.MaxDepth != -1 {
			t.Errorf("expected unlimited depth, got %d", s.MaxDepth)
		}
		if len(s.IgnorePatterns) != 1 {
			t.Errorf("expected 1 ignore pattern, got %v", s.IgnorePatterns)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.crawlmd")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".crawlmd")
		content := `defaults:
  maxDepth: 5
  delay: 500ms
  cookie: "default=abc"
sites:
  docs.example.com:
    maxDepth: 0
    maxPages: 20
    userAgent: "docs-bot/1.0"
    headers:
      Authorization: "Bearer token"
    ignorePatterns:
      - "/admin/*"
    followPatterns:
      - "/guide/*"
`
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Defaults.MaxDepth == nil || *cfg.Defaults.MaxDepth != 5 {
			t.Errorf("expected default depth 5, got %v", cfg.Defaults.MaxDepth)
		}
		if cfg.Defaults.Delay == nil || *cfg.Defaults.Delay != 500*time.Millisecond {
			t.Errorf("expected default delay 500ms, got %v", cfg.Defaults.Delay)
		}

		site, ok := cfg.Sites["docs.example.com"]
		if !ok {
			t.Fatal("expected docs.example.com in sites")
		}
		if site.MaxDepth == nil || *site.MaxDepth != 0 {
			t.Errorf("expected explicit depth 0, got %v", site.MaxDepth)
		}
		if site.Headers["Authorization"] != "Bearer token" {
			t.Errorf("expected Authorization header")
		}
		if site.UserAgent != "docs-bot/1.0" {
			t.Errorf("expected user agent, got %q", site.UserAgent)
		}
		if len(site.FollowPatterns) != 1 {
			t.Errorf("expected 1 follow pattern, got %d", len(site.FollowPatterns))
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".crawlmd")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".crawlmd")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxPages: 25\n"), 0o600); err != nil {
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

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestLoad tests loading into a Config.
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("explicit missing file is an error", func(t *testing.T) {
		t.Parallel()

		c := NewConfig()
		c.ConfigFilePath = filepath.Join(t.TempDir(), "missing.yaml")
		if _, err := Load(c); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("explicit file is loaded", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "site.yaml")
		if err := os.WriteFile(path, []byte("sites:\n  example.com:\n    cookie: a=b\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		c := NewConfig()
		c.ConfigFilePath = path
		got, err := Load(c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
		if c.SettingsFor("example.com").Cookie != "a=b" {
			t.Error("expected cookie from loaded file")
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end in %s, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end in %s, got %q", AppName, XDGConfigDir())
	}
}
