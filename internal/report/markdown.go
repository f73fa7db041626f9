package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/linkmark/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for documentation and
// pull request comments.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.StatsReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writePages(md, report)
	w.writeDomains(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.StatsReport) {
	md.H1("Link Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Site.HomeURL() + "`"},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages", strconv.Itoa(len(report.Pages))},
			{"Failed", strconv.Itoa(report.Failed())},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.StatsReport) {
	t := report.Totals

	md.H2("Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(model.Classifications)+1)
	for _, c := range model.Classifications {
		rows = append(rows, []string{Label(c), strconv.Itoa(t.Count(c))})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(t.Total) + "**"})
	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Links"},
		Rows:   rows,
	})
	md.PlainText("")

	if t.Total > 0 {
		w.writePieChart(md, t)
	}

	switch {
	case report.Failed() > 0:
		md.Warningf("%d page(s) could not be analyzed.", report.Failed())
	case t.External > 0:
		md.Note(fmt.Sprintf("%d external link(s) will be annotated.", t.External))
	default:
		md.Tip("No external links need annotation.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, t model.LinkStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Link Classification"),
		piechart.WithShowData(true),
	)
	for _, c := range model.Classifications {
		if n := t.Count(c); n > 0 {
			chart.LabelAndIntValue(Label(c), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.StatsReport) {
	if len(report.Pages) == 0 {
		return
	}

	md.H2("Pages")
	md.PlainText("")

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		status := "✅"
		if p.Error != "" {
			status = "❌ " + escapePipes(truncateString(p.Error, 60))
		}
		rows[i] = []string{
			"`" + escapePipes(truncateString(p.Source, 60)) + "`",
			strconv.Itoa(p.Total),
			strconv.Itoa(p.External),
			strconv.Itoa(p.ExcludedByClass + p.ExcludedByDomain),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Links", "External", "Excluded", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, report *model.StatsReport) {
	md.H2("External Domains")
	md.PlainText("")

	if len(report.Totals.Domains) == 0 {
		md.PlainText("No external domains found.")
		md.PlainText("")
		return
	}

	items := make([]string, len(report.Totals.Domains))
	for i, d := range report.Totals.Domains {
		items[i] = "`" + d + "`"
	}
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [linkmark](https://github.com/nao1215/linkmark)*")
}

// escapePipes keeps table cells intact.
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
