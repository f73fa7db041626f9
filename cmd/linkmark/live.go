package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkmark/internal/browser"
	"github.com/nao1215/linkmark/internal/dom"
	"github.com/nao1215/linkmark/internal/eventloop"
	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/icon"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/processor"
)

// liveDocument is a document the live processor can run on and serialize.
type liveDocument interface {
	dom.Document
	HTML() (string, error)
}

// NewLiveCmd creates the live command.
func NewLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live <url|file.html>",
		Short: "Annotate a live page the way client mode does",
		Long: `Live runs the client-mode processor against a rendered page.

URLs are opened in a headless browser (or the browser given with --remote);
anchors are annotated in batches and anchors added later by page scripts are
picked up as the page changes. Local HTML files are loaded into an in-memory
document.

The processor reads the site bootstrap payload, so the link settings come from
the site configuration when the site is in client mode and from the built-in
defaults otherwise.

Examples:
  # Annotate a page once and print the resulting HTML
  linkmark live --site https://example.com --dump https://example.com/

  # Keep annotating content added by scripts for 30 seconds
  linkmark live --site https://example.com --watch-for 30s https://example.com/app

  # Use a running Chrome started with --remote-debugging-port=9222
  linkmark live --site https://example.com --remote ws://127.0.0.1:9222/devtools/browser/... https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runLiveCmd,
	}

	cmd.Flags().String("remote", "",
		"DevTools WebSocket URL of a running browser (default: launch headless Chrome)")
	cmd.Flags().Bool("headful", false,
		"Show the window of the launched browser")
	cmd.Flags().Duration("watch-for", 0,
		"Keep processing added content for this long (default: stop after the initial pass)")
	cmd.Flags().Bool("dump", false,
		"Print the annotated document HTML when done")
	cmd.Flags().Int("batch-size", processor.DefaultBatchSize,
		"Anchors processed per frame")
	cmd.Flags().Duration("debounce", processor.DefaultDebounce,
		"Quiet period before content additions trigger a rescan")
	cmd.Flags().DurationP("timeout", "t", browser.DefaultNavigationTimeout,
		"Page navigation timeout")

	return cmd
}

// liveOptions are the flag values of the live command.
type liveOptions struct {
	target    string
	remote    string
	headful   bool
	watchFor  time.Duration
	dump      bool
	batchSize int
	debounce  time.Duration
	timeout   time.Duration
}

func readLiveFlags(cmd *cobra.Command, target string) (liveOptions, error) {
	o := liveOptions{target: target}
	var err error
	flags := cmd.Flags()

	if o.remote, err = flags.GetString("remote"); err != nil {
		return o, err
	}
	if o.headful, err = flags.GetBool("headful"); err != nil {
		return o, err
	}
	if o.watchFor, err = flags.GetDuration("watch-for"); err != nil {
		return o, err
	}
	if o.dump, err = flags.GetBool("dump"); err != nil {
		return o, err
	}
	if o.batchSize, err = flags.GetInt("batch-size"); err != nil {
		return o, err
	}
	if o.debounce, err = flags.GetDuration("debounce"); err != nil {
		return o, err
	}
	if o.timeout, err = flags.GetDuration("timeout"); err != nil {
		return o, err
	}
	if o.batchSize <= 0 {
		return o, errors.New("--batch-size must be positive")
	}
	return o, nil
}

// runLiveCmd executes the live command.
func runLiveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	lo, err := readLiveFlags(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	env, err := openEnvironment(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.logger

	opts, err := env.provider.Options(ctx)
	if err != nil {
		return err
	}
	if !opts.Enabled {
		return fmt.Errorf("link processing is disabled for %s", env.provider.Site().Host)
	}
	if fetcher.IsURL(lo.target) {
		u, err := url.Parse(lo.target)
		if err != nil {
			return fmt.Errorf("invalid target %s: %w", lo.target, err)
		}
		if !opts.InScope(u.Path) {
			return fmt.Errorf("%s is outside the path scopes of %s", lo.target, env.provider.Site().Host)
		}
	}
	if opts.Mode != model.ModeClient {
		logger.Warn("site is not in client mode; the bootstrap payload carries no settings and defaults apply",
			"site", env.provider.Site().Host, "mode", opts.Mode)
	}

	payload, err := env.provider.Bootstrap(ctx)
	if err != nil {
		return err
	}
	boot, err := model.DecodeBootstrap(payload)
	if err != nil {
		return err
	}

	doc, closeDoc, err := openLiveDocument(ctx, lo, logger)
	if err != nil {
		return err
	}
	defer closeDoc()

	stats, err := runProcessor(ctx, doc, boot, lo, env.icons(), logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Done: %d scans, %d anchors processed, %d annotated, %d failed\n",
		stats.Scans, stats.Processed, stats.Annotated, stats.Failures)

	if lo.dump {
		html, err := doc.HTML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), html+"\n")
		return err
	}
	return nil
}

// openLiveDocument opens target in a browser when it is a URL and parses it
// into an in-memory document otherwise.
func openLiveDocument(ctx context.Context, lo liveOptions, logger *slog.Logger) (liveDocument, func(), error) {
	if !fetcher.IsURL(lo.target) {
		f, err := os.Open(lo.target)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s: %w", lo.target, err)
		}
		defer f.Close()
		doc, err := dom.Parse(f)
		if err != nil {
			return nil, nil, err
		}
		return doc, func() {}, nil
	}

	session, err := browser.Launch(browser.Options{
		RemoteURL:         lo.remote,
		Headful:           lo.headful,
		NavigationTimeout: lo.timeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, nil, err
	}
	page, err := session.Open(ctx, lo.target)
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}
	return page, func() {
		if err := page.Close(); err != nil {
			logger.Debug("failed to close page", "error", err)
		}
		if err := session.Close(); err != nil {
			logger.Debug("failed to close browser", "error", err)
		}
	}, nil
}

// runProcessor starts a processor on its own event loop, waits for the
// initial pass or for lo.watchFor, and stops it.
func runProcessor(ctx context.Context, doc liveDocument, boot model.Bootstrap, lo liveOptions, icons *icon.Renderer, logger *slog.Logger, progress io.Writer) (processor.Stats, error) {
	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer stopLoop()

	loop := eventloop.New(eventloop.WithLogger(logger))
	go func() { _ = loop.Run(loopCtx) }()

	firstPass := make(chan struct{})
	proc := processor.New(doc, loop, boot,
		processor.WithLogger(logger),
		processor.WithIconRenderer(icons),
		processor.WithBatchSize(lo.batchSize),
		processor.WithDebounce(lo.debounce),
		processor.WithPassCompleteHook(func(p processor.Pass) {
			fmt.Fprintf(progress, "scan %d: %d anchors, %d new, %d annotated\n",
				p.Scan, p.Anchors, p.Processed, p.Annotated)
			if p.Scan == 1 {
				close(firstPass)
			}
		}),
	)
	logger.Debug("starting live processor", "run_id", proc.ID(), "target", lo.target)

	if err := loop.Call(ctx, proc.Start); err != nil {
		return processor.Stats{}, err
	}

	select {
	case <-firstPass:
	case <-ctx.Done():
	case <-time.After(lo.timeout):
		logger.Warn("initial pass did not complete", "timeout", lo.timeout)
	}
	if lo.watchFor > 0 && ctx.Err() == nil {
		select {
		case <-time.After(lo.watchFor):
		case <-ctx.Done():
		}
	}

	var stats processor.Stats
	err := loop.Call(loopCtx, func() error {
		proc.Stop()
		stats = proc.Stats()
		return nil
	})
	return stats, err
}
