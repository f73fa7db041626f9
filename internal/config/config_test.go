package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default Concurrency is 8", func(t *testing.T) {
		t.Parallel()
		if cfg.Concurrency != 8 {
			t.Errorf("expected Concurrency to be 8, got %d", cfg.Concurrency)
		}
	})

	t.Run("default BootstrapTTL is one hour", func(t *testing.T) {
		t.Parallel()
		if cfg.BootstrapTTL != time.Hour {
			t.Errorf("expected BootstrapTTL to be 1h, got %v", cfg.BootstrapTTL)
		}
	})

	t.Run("default DBDir is the XDG data dir", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir to be %s, got %s", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("default config is valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{name: "valid site URL", modify: func(c *Config) { c.SiteURL = "https://example.com" }},
		{name: "valid proxy", modify: func(c *Config) { c.ProxyURL = "socks5://127.0.0.1:9050" }},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "negative timeout", modify: func(c *Config) { c.Timeout = -time.Second }, wantErr: ErrInvalidTimeout},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{
			name:    "both report formats",
			modify:  func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			wantErr: ErrConflictingReportFormats,
		},
		{name: "negative body size", modify: func(c *Config) { c.MaxBodySize = -1 }, wantErr: ErrInvalidMaxBodySize},
		{name: "relative site URL", modify: func(c *Config) { c.SiteURL = "example.com" }, wantErr: ErrInvalidSiteURL},
		{name: "ftp site URL", modify: func(c *Config) { c.SiteURL = "ftp://example.com" }, wantErr: ErrInvalidSiteURL},
		{name: "watch in place", modify: func(c *Config) { c.Watch = true }, wantErr: ErrWatchRequiresOutDir},
		{name: "negative crawl depth", modify: func(c *Config) { c.CrawlDepth = -1 }, wantErr: ErrInvalidCrawl},
		{name: "negative max pages", modify: func(c *Config) { c.MaxPages = -1 }, wantErr: ErrInvalidCrawl},
		{name: "missing icon dir", modify: func(c *Config) { c.IconDir = filepath.Join(os.TempDir(), "linkmark-no-such-dir") }, wantErr: ErrInvalidIconDir},
		{name: "http proxy", modify: func(c *Config) { c.ProxyURL = "http://proxy:8080" }, wantErr: ErrInvalidProxyURL},
		{name: "proxy without host", modify: func(c *Config) { c.ProxyURL = "socks5://" }, wantErr: ErrInvalidProxyURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigSite(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if _, err := cfg.Site(); !errors.Is(err, ErrNoSite) {
		t.Errorf("expected ErrNoSite, got %v", err)
	}

	cfg.SiteURL = "https://WWW.Example.com:8443/blog"
	site, err := cfg.Site()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if site.Host != "www.example.com" || site.Scheme != "https" {
		t.Errorf("unexpected site identity: %+v", site)
	}
}

func TestConfigValidateTargets(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if err := cfg.ValidateTargets(); !errors.Is(err, ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}
	cfg.Targets = []string{"index.html"}
	if err := cfg.ValidateTargets(); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("valid file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `
defaults:
  addNofollow: false
  excludeDomains:
    - partner.com
sites:
  example.com:
    mode: client
    iconPosition: before
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		opts := cf.Options("www.example.com")
		if opts.Mode != "client" || opts.Link.IconPosition != "before" {
			t.Errorf("site override not applied: %+v", opts)
		}
		if opts.Link.AddNofollow {
			t.Error("defaults not applied")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("sites: [unterminated"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected an error for invalid YAML")
		}
	})

	t.Run("invalid site settings", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := "sites:\n  example.com:\n    iconType: emoji\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); !errors.Is(err, ErrInvalidIconType) {
			t.Errorf("expected ErrInvalidIconType, got %v", err)
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty path, got %s", got)
		}
	})
}
