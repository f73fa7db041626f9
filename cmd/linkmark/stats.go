package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/crawler"
	"github.com/nao1215/linkmark/internal/fetcher"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/pipeline"
	"github.com/nao1215/linkmark/internal/report"
	"github.com/nao1215/linkmark/internal/rewriter"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [path|url|-]...",
		Short: "Report link statistics for site content",
		Long: `Stats classifies every link of the given content without modifying it and
reports how many are internal, special (mailto:, tel:, anchors...), excluded
by class or domain, and external, plus the external domains linked to.

Examples:
  # Statistics for a built site
  linkmark stats --site https://example.com public/

  # Markdown report for a live page, saved to the history
  linkmark stats --site https://example.com --markdown --save https://example.com/

  # Follow internal links two levels deep, skipping tag pages
  linkmark stats --site https://example.com --crawl 2 --ignore '/tag/*' https://example.com/

  # Show the last saved report or the history
  linkmark stats --site https://example.com --last
  linkmark stats --site https://example.com --history`,
		Args: cobra.ArbitraryArgs,
		RunE: runStatsCmd,
	}

	addFetchFlags(cmd)
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("save", false,
		"Save the report to the settings database")
	cmd.Flags().Bool("last", false,
		"Print the last saved report instead of analyzing content")
	cmd.Flags().Bool("history", false,
		"List saved reports instead of analyzing content")
	cmd.Flags().Int("crawl", 0,
		"Follow internal links of URL targets this many levels deep")
	cmd.Flags().Int("max-pages", config.DefaultMaxPages,
		"Maximum pages requested per crawled URL")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Pause between crawl requests")
	cmd.Flags().StringSlice("ignore", nil,
		"URL path patterns never crawled (e.g. '/admin/*', '*.pdf')")
	cmd.Flags().StringSlice("follow", nil,
		"Only crawl URL paths matching these patterns (e.g. '/blog/*')")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := readFetchFlags(cmd, cfg); err != nil {
		return err
	}

	flags := cmd.Flags()
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return err
	}
	if cfg.CrawlDepth, err = flags.GetInt("crawl"); err != nil {
		return err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("crawl-delay"); err != nil {
		return err
	}
	if cfg.IgnorePatterns, err = flags.GetStringSlice("ignore"); err != nil {
		return err
	}
	if cfg.FollowPatterns, err = flags.GetStringSlice("follow"); err != nil {
		return err
	}
	save, err := flags.GetBool("save")
	if err != nil {
		return err
	}
	last, err := flags.GetBool("last")
	if err != nil {
		return err
	}
	history, err := flags.GetBool("history")
	if err != nil {
		return err
	}
	if last && history {
		return errors.New("--last and --history cannot be used together")
	}
	if !last && !history {
		if err := cfg.ValidateTargets(); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	env, err := openEnvironment(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	host := env.provider.Site().Host
	switch {
	case history:
		return printHistory(ctx, env, cmd.OutOrStdout())
	case last:
		rep, err := env.store.LatestStatsReport(ctx, host)
		if err != nil {
			return err
		}
		if rep == nil {
			return fmt.Errorf("no saved report for %s", host)
		}
		return outputStats(cfg, rep, cmd.OutOrStdout())
	}

	rep, err := analyze(ctx, env, cmd.InOrStdin())
	if err != nil {
		return err
	}

	if save {
		id, err := env.store.SaveStatsReport(ctx, rep)
		if err != nil {
			return err
		}
		env.logger.Info("report saved", "id", id, "site", host)
	}

	if err := outputStats(cfg, rep, cmd.OutOrStdout()); err != nil {
		return err
	}
	if failed := rep.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d documents could not be analyzed", failed, len(rep.Pages))
	}
	return nil
}

// analyze classifies the links of every target.
func analyze(ctx context.Context, env *environment, stdin io.Reader) (*model.StatsReport, error) {
	cfg, logger := env.cfg, env.logger

	docs, err := pipeline.Collect(cfg.Targets)
	if err != nil {
		return nil, err
	}
	linkCfg, err := env.provider.LinkConfig(ctx)
	if err != nil {
		return nil, err
	}
	f, err := newFetcher(cfg, logger)
	if err != nil {
		return nil, err
	}

	site := env.provider.Site()
	if cfg.CrawlDepth > 0 {
		if docs, err = crawl(ctx, env, f, docs); err != nil {
			return nil, err
		}
	}

	steps := []pipeline.Step{
		pipeline.NewLoadStep(f, stdin),
		pipeline.NewAnalyzeStep(site, linkCfg, rewriter.WithLogger(logger)),
	}
	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			return pipeline.New(steps, pipeline.WithLogger(logger))
		},
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	// Crawled pages that failed keep their error and are not analyzed.
	pending := make([]*pipeline.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Err == nil {
			pending = append(pending, doc)
		}
	}

	start := time.Now()
	if err := bp.ProcessBatch(ctx, pending); err != nil {
		return nil, err
	}
	logger.Info("analysis finished", "documents", len(docs), "elapsed", time.Since(start))

	pages := make([]model.LinkStats, len(docs))
	for i, doc := range docs {
		pages[i] = doc.Stats
		if doc.Err != nil {
			pages[i] = model.LinkStats{Source: doc.Source, Domains: []string{}, Error: doc.Err.Error()}
		}
	}
	return model.NewStatsReport(site, pages), nil
}

// crawl replaces every URL document with the site pages reachable from it.
// Other documents are kept in place. Pages reached from several targets are
// listed once.
func crawl(ctx context.Context, env *environment, f *fetcher.Fetcher, docs []*pipeline.Document) ([]*pipeline.Document, error) {
	cfg, logger := env.cfg, env.logger
	site := env.provider.Site()

	var out []*pipeline.Document
	seen := map[string]bool{}
	for _, doc := range docs {
		if !doc.IsURL() {
			out = append(out, doc)
			continue
		}

		spider := crawler.NewSpider(f, site,
			crawler.WithMaxDepth(cfg.CrawlDepth),
			crawler.WithMaxPages(cfg.MaxPages),
			crawler.WithDelay(cfg.CrawlDelay),
			crawler.WithIgnorePatterns(cfg.IgnorePatterns),
			crawler.WithFollowPatterns(cfg.FollowPatterns),
			crawler.WithLogger(logger),
		)
		pages, err := spider.Crawl(ctx, doc.Source)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			doc.Err = err
			out = append(out, doc)
			continue
		}
		logger.Info("crawl finished", "start", doc.Source, "pages", len(pages))

		for _, p := range pages {
			if seen[p.URL] {
				continue
			}
			seen[p.URL] = true
			d := pipeline.NewDocument(p.URL, "")
			d.Kind = pipeline.KindHTML
			if p.Err != nil {
				d.Err = p.Err
			} else {
				d.Content, d.Loaded = p.Body, true
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// outputStats writes rep in the requested format.
func outputStats(cfg *config.Config, rep *model.StatsReport, stdout io.Writer) error {
	out, closeFn, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer closeFn() //nolint:errcheck // write errors are reported by the writer

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithDomains(true))
	}
	_, err = w.Write(rep)
	return err
}

// printHistory lists the saved reports of the site, newest first.
func printHistory(ctx context.Context, env *environment, out io.Writer) error {
	host := env.provider.Site().Host
	entries, err := env.store.StatsHistory(ctx, host)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No saved reports for %s\n", host)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSAVED\tLINKS\tEXTERNAL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.ID, e.Timestamp.Local().Format(time.DateTime), e.Total, e.External)
	}
	return tw.Flush()
}
