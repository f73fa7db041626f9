package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/linkmark/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showDomains lists the external domains of every page.
	showDomains bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithDomains lists the external domains found on each page.
func WithDomains(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showDomains = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.StatsReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writePages(&sb, report)
	w.writeTotals(&sb, report)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.StatsReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       LINKMARK LINK REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Site:       %s\n", report.Site.HomeURL())
	fmt.Fprintf(sb, "Generated:  %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Pages:      %d", len(report.Pages))
	if failed := report.Failed(); failed > 0 {
		fmt.Fprintf(sb, " (%d failed)", failed)
	}
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, report *model.StatsReport) {
	if len(report.Pages) <= 1 {
		if len(report.Pages) == 1 && report.Pages[0].Error != "" {
			fmt.Fprintf(sb, "ERROR  %s: %s\n\n", report.Pages[0].Source, report.Pages[0].Error)
		}
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nPAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	for _, p := range report.Pages {
		if p.Error != "" {
			fmt.Fprintf(sb, "  %-40s ERROR: %s\n", truncateString(p.Source, 40), p.Error)
			continue
		}
		fmt.Fprintf(sb, "  %-40s %4d links, %4d external\n", truncateString(p.Source, 40), p.Total, p.External)
		if w.showDomains && len(p.Domains) > 0 {
			fmt.Fprintf(sb, "      domains: %s\n", strings.Join(p.Domains, ", "))
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, report *model.StatsReport) {
	t := report.Totals

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\nLINKS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  %-20s %d\n", "Total", t.Total)
	for _, c := range model.Classifications {
		fmt.Fprintf(sb, "  %-20s %d\n", Label(c), t.Count(c))
	}
	fmt.Fprintf(sb, "  %-20s %d\n", "Processed", t.Processed())
	sb.WriteString("\n")

	if len(t.Domains) == 0 {
		sb.WriteString("No external domains found.\n")
		return
	}
	fmt.Fprintf(sb, "External domains (%d):\n", len(t.Domains))
	for _, d := range t.Domains {
		fmt.Fprintf(sb, "  - %s\n", d)
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
