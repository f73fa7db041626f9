package model

import (
	"slices"
	"time"
)

// LinkStats summarizes the anchors found in one content payload.
type LinkStats struct {
	// Source identifies the payload (file path, URL or "-" for stdin).
	Source string `json:"source"`

	// Total is the number of anchors carrying an href.
	Total int `json:"total_links"`

	Internal         int `json:"internal_links"`
	Special          int `json:"special_links"`
	ExcludedByClass  int `json:"excluded_by_class"`
	ExcludedByDomain int `json:"excluded_by_domain"`
	External         int `json:"external_links"`

	// Domains lists the off-site hosts (www-stripped) in first-seen order,
	// including excluded ones.
	Domains []string `json:"external_domains"`

	// Error is set when the payload could not be read or fetched.
	Error string `json:"error,omitempty"`
}

// Add counts one anchor with the given classification.
func (s *LinkStats) Add(c Classification) {
	s.Total++
	switch c {
	case Internal:
		s.Internal++
	case Special:
		s.Special++
	case ExcludedByClass:
		s.ExcludedByClass++
	case ExcludedByDomain:
		s.ExcludedByDomain++
	case External:
		s.External++
	}
}

// AddDomain records an off-site host once.
func (s *LinkStats) AddDomain(host string) {
	host = NormalizeHost(host)
	if host == "" || slices.Contains(s.Domains, host) {
		return
	}
	s.Domains = append(s.Domains, host)
}

// Count returns the number of anchors with the given classification.
func (s LinkStats) Count(c Classification) int {
	switch c {
	case Internal:
		return s.Internal
	case Special:
		return s.Special
	case ExcludedByClass:
		return s.ExcludedByClass
	case ExcludedByDomain:
		return s.ExcludedByDomain
	case External:
		return s.External
	default:
		return 0
	}
}

// Processed is the number of anchors that were (or would be) annotated.
func (s LinkStats) Processed() int {
	return s.External
}

// Merge adds the counts and domains of other into s.
func (s *LinkStats) Merge(other LinkStats) {
	s.Total += other.Total
	s.Internal += other.Internal
	s.Special += other.Special
	s.ExcludedByClass += other.ExcludedByClass
	s.ExcludedByDomain += other.ExcludedByDomain
	s.External += other.External
	for _, d := range other.Domains {
		s.AddDomain(d)
	}
}

// StatsReport aggregates the link statistics of several payloads.
type StatsReport struct {
	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// Site is the identity the links were classified against.
	Site SiteIdentity `json:"site"`

	// Pages holds the per-payload statistics in input order.
	Pages []LinkStats `json:"pages"`

	// Totals sums every page.
	Totals LinkStats `json:"totals"`
}

// NewStatsReport builds a report and computes the totals.
func NewStatsReport(site SiteIdentity, pages []LinkStats) *StatsReport {
	r := &StatsReport{
		GeneratedAt: time.Now(),
		Site:        site,
		Pages:       pages,
		Totals:      LinkStats{Source: "total", Domains: []string{}},
	}
	for _, p := range pages {
		r.Totals.Merge(p)
	}
	return r
}

// Failed returns the number of pages that could not be analyzed.
func (r *StatsReport) Failed() int {
	n := 0
	for _, p := range r.Pages {
		if p.Error != "" {
			n++
		}
	}
	return n
}
