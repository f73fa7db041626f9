package rewriter

import "github.com/nao1215/linkmark/internal/model"

// Analyze classifies every anchor carrying an href, closed or not, and
// returns the counts and the off-site domains. content is not modified.
func (r *Rewriter) Analyze(source, content string) model.LinkStats {
	stats := model.LinkStats{Source: source, Domains: []string{}}

	scan(content, nil, func(a *anchorElement) string {
		rec := a.record()
		c := r.classifier.Classify(rec.Href, rec.Class)
		stats.Add(c)

		switch c {
		case model.External, model.ExcludedByClass, model.ExcludedByDomain:
			if host, ok := r.classifier.Host(rec.Href); ok {
				stats.AddDomain(host)
			}
		}
		return ""
	})

	return stats
}
