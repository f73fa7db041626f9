package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/pipeline"
	"github.com/nao1215/linkmark/internal/rewriter"
)

// NewRewriteCmd creates the rewrite command.
func NewRewriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewrite [path|url|-]...",
		Short: "Annotate external links in HTML and Markdown files",
		Long: `Rewrite annotates every external link of the given content once, the way
server mode does before content is delivered.

HTML files (.html, .htm) are rewritten in place or under --out. Markdown files
(.md, .markdown) are rendered to HTML with external links annotated and written
with an .html extension. Directories are walked recursively, URLs are fetched,
and "-" reads standard input and writes standard output.

Examples:
  # Rewrite a built site into dist/
  linkmark rewrite --site https://example.com --out dist public/

  # Rewrite one file in place
  linkmark rewrite --site https://example.com index.html

  # Filter standard input
  cat page.html | linkmark rewrite --site https://example.com -

  # Keep dist/ up to date while editing
  linkmark rewrite --site https://example.com --out dist --watch content/`,
		Args: cobra.ArbitraryArgs,
		RunE: runRewriteCmd,
	}

	addFetchFlags(cmd)
	cmd.Flags().StringP("out", "o", "",
		"Write results under this directory instead of in place")
	cmd.Flags().BoolP("watch", "w", false,
		"Rewrite changed files until interrupted (requires --out)")

	return cmd
}

// runRewriteCmd executes the rewrite command.
func runRewriteCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := readFetchFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.OutDir, err = cmd.Flags().GetString("out"); err != nil {
		return err
	}
	if cfg.Watch, err = cmd.Flags().GetBool("watch"); err != nil {
		return err
	}
	if err := cfg.ValidateTargets(); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	env, err := openEnvironment(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	r := &rewriteRun{env: env, stdin: cmd.InOrStdin(), stdout: cmd.OutOrStdout(), stderr: cmd.ErrOrStderr()}

	docs, err := pipeline.Collect(cfg.Targets)
	if err != nil {
		return err
	}
	if err := r.run(ctx, docs); err != nil {
		return err
	}

	if cfg.Watch {
		return r.watch(ctx)
	}
	return r.failure(docs)
}

// rewriteRun holds the state of one rewrite command.
type rewriteRun struct {
	env    *environment
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// newBatch builds a batch processor for the current site options. Options
// are read on every call so settings changes apply to the next rebuild.
func (r *rewriteRun) newBatch(ctx context.Context) (*pipeline.BatchProcessor, error) {
	cfg, logger := r.env.cfg, r.env.logger

	opts, err := r.env.provider.Options(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Enabled && opts.Mode == model.ModeClient {
		logger.Warn("site is configured for client mode; content is copied without annotation",
			"site", r.env.provider.Site().Host)
		opts.Enabled = false
	}

	f, err := newFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	steps := []pipeline.Step{
		pipeline.NewLoadStep(f, r.stdin),
		pipeline.NewRewriteStep(r.env.provider.Site(), opts,
			r.env.icons(), rewriter.WithLogger(logger)),
		pipeline.NewWriteStep(cfg.OutDir, r.stdout),
	}
	return pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.New(steps, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	), nil
}

// run rewrites docs and reports each result on stderr.
func (r *rewriteRun) run(ctx context.Context, docs []*pipeline.Document) error {
	bp, err := r.newBatch(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	err = bp.ProcessBatchWithCallback(ctx, docs, func(doc *pipeline.Document, _ int) {
		r.report(doc)
	})
	r.env.logger.Info("rewrite finished", "documents", len(docs), "elapsed", time.Since(start))
	return err
}

// report prints the outcome for one document. Output of documents written
// to stdout is not reported so it does not mix with the content.
func (r *rewriteRun) report(doc *pipeline.Document) {
	switch {
	case doc.Err != nil:
		fmt.Fprintf(r.stderr, "error: %s: %v\n", doc.Source, doc.Err)
	case doc.OutputPath == "":
	case doc.OutputPath == doc.Source && doc.Output == doc.Content:
		fmt.Fprintf(r.stderr, "unchanged: %s\n", doc.Source)
	default:
		fmt.Fprintf(r.stderr, "wrote: %s\n", doc.OutputPath)
	}
}

// failure returns an error when any document failed.
func (r *rewriteRun) failure(docs []*pipeline.Document) error {
	failed := 0
	for _, d := range docs {
		if d.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

// watchRoot is a watched directory. only limits events to one file when a
// file target was given.
type watchRoot struct {
	dir  string
	only string
}

// watch rewrites changed content files under the local targets until ctx
// is cancelled.
func (r *rewriteRun) watch(ctx context.Context) error {
	cfg, logger := r.env.cfg, r.env.logger

	roots, err := watchRoots(cfg.Targets)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: watch mode needs local files or directories", config.ErrNoTarget)
	}

	outDir, err := filepath.Abs(cfg.OutDir)
	if err != nil {
		return err
	}
	dirs := make([]string, 0, len(roots))
	for _, root := range roots {
		dirs = append(dirs, root.dir)
	}
	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	w := pipeline.NewWatcher(
		pipeline.WithWatchDelay(config.DefaultWatchDelay),
		pipeline.WithIgnore(outDir),
		pipeline.WithWatchLogger(logger),
	)
	fmt.Fprintf(r.stderr, "watching %s (press Ctrl+C to stop)\n", strings.Join(dirs, ", "))

	err = w.Watch(ctx, dirs, func(ctx context.Context, paths []string) {
		docs := changedDocuments(roots, paths)
		if len(docs) == 0 {
			return
		}
		if err := r.run(ctx, docs); err != nil {
			logger.Warn("rebuild interrupted", "error", err)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// watchRoots maps local targets to absolute watched directories.
func watchRoots(targets []string) ([]watchRoot, error) {
	var roots []watchRoot
	for _, target := range targets {
		if target == pipeline.Stdin || fetcher.IsURL(target) {
			continue
		}
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", target, err)
		}
		if info.IsDir() {
			roots = append(roots, watchRoot{dir: abs})
		} else {
			roots = append(roots, watchRoot{dir: filepath.Dir(abs), only: abs})
		}
	}
	return roots, nil
}

// changedDocuments returns a document for every changed path that belongs
// to a watch root, keeping the layout relative to that root.
func changedDocuments(roots []watchRoot, paths []string) []*pipeline.Document {
	var docs []*pipeline.Document
	for _, p := range paths {
		for _, root := range roots {
			if root.only != "" && root.only != p {
				continue
			}
			rel, err := filepath.Rel(root.dir, p)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			docs = append(docs, pipeline.NewDocument(p, root.dir))
			break
		}
	}
	return docs
}
