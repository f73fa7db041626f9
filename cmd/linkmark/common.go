package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkmark/internal/bootstrap"
	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/icon"
	"github.com/nao1215/linkmark/internal/log"
	"github.com/nao1215/linkmark/internal/provider"
	"github.com/nao1215/linkmark/internal/settings"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the global flags and args, and loads
// the configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	flags := cmd.Flags()

	if cfg.JSONLog, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	if cfg.LogFile, err = flags.GetString("log-file"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.SiteURL, err = flags.GetString("site"); err != nil {
		return nil, err
	}
	if cfg.IconDir, err = flags.GetString("icon-dir"); err != nil {
		return nil, err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	// If the user explicitly specified a config file path, error if not found.
	// Otherwise run with the built-in defaults when no file is found.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.File, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Targets = args
	return cfg, nil
}

// addFetchFlags registers the flags controlling page fetches.
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent when fetching pages")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().String("proxy", "",
		"Fetch pages through a SOCKS5 proxy (socks5://host:port)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of files or URLs processed at once")
}

// readFetchFlags copies the fetch flags into cfg.
func readFetchFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	flags := cmd.Flags()

	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return err
	}
	if cfg.ProxyURL, err = flags.GetString("proxy"); err != nil {
		return err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return err
	}
	return nil
}

// newFetcher creates a fetcher from cfg.
func newFetcher(cfg *config.Config, logger *slog.Logger) (*fetcher.Fetcher, error) {
	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithLogger(logger),
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, fetcher.WithProxy(cfg.ProxyURL))
	}
	return fetcher.New(opts...)
}

// setupLogger creates the logger for cfg and makes it the default.
// Debug logging is enabled by --verbose or by debugMode in the config file.
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	verbose := cfg.Verbose
	if site, err := cfg.Site(); err == nil && cfg.File.Options(site.Host).DebugMode {
		verbose = true
	}

	logger, closeFn, err := log.New(cmd.ErrOrStderr(), log.Options{
		Verbose: verbose,
		JSON:    cfg.JSONLog,
		File:    cfg.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// environment bundles what the site-aware commands share.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider *provider.Provider
	store    *settings.Store
	closers  []func() error
}

// openEnvironment builds the logger, opens the settings store and the
// bootstrap cache, and creates the provider for cfg.SiteURL.
func openEnvironment(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	site, err := cfg.Site()
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := setupLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	env.store, err = settings.Open(cfg.DBDir, settings.DefaultOptions())
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}
	env.closers = append(env.closers, env.store.Close)
	logger.Debug("settings database opened", "path", env.store.Path())

	var cache bootstrap.Cache
	if cfg.RedisURL != "" {
		rc, err := bootstrap.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.closers = append(env.closers, rc.Close)
		cache = rc
		logger.Debug("using redis bootstrap cache", "url", cfg.RedisURL)
	}
	boot := bootstrap.NewService(cache, bootstrap.WithTTL(cfg.BootstrapTTL), bootstrap.WithLogger(logger))

	env.provider = provider.NewForSite(site,
		provider.WithFile(cfg.File),
		provider.WithStore(env.store),
		provider.WithBootstrap(boot),
		provider.WithLogger(logger),
	)
	return env, nil
}

// icons creates the icon renderer, reading operator icons from --icon-dir.
func (e *environment) icons() *icon.Renderer {
	opts := []icon.Option{icon.WithLogger(e.logger)}
	if e.cfg.IconDir != "" {
		opts = append(opts, icon.WithAssets(os.DirFS(e.cfg.IconDir)))
	}
	return icon.New(opts...)
}

// Close releases everything opened by openEnvironment, last opened first.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil && e.logger != nil {
			e.logger.Warn("failed to close resource", "error", err)
		}
	}
	e.closers = nil
}

// openOutput returns the report destination: path, or out when path is
// empty. Reports are written with owner-only permissions.
func openOutput(path string, out io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return out, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
