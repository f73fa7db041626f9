package model

import (
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidBaseURL is returned when a site identity cannot be derived from
// a base URL because it has no host or an unsupported scheme.
var ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

// DefaultScheme is used when a base URL or bootstrap payload omits the scheme.
const DefaultScheme = "https"

// SiteIdentity is the canonical origin of the site whose content is processed.
// Host is stored lowercased and without a port; the leading "www." is kept
// and only stripped at comparison time (see NormalizeHost).
type SiteIdentity struct {
	// Host is the site host name, e.g. "www.example.com".
	Host string `json:"site_host"`

	// Scheme is "http" or "https". It is used to resolve protocol-relative
	// links ("//cdn.example.com/x") before classification.
	Scheme string `json:"site_scheme"`
}

// NewSiteIdentity builds a SiteIdentity from a host and scheme.
// An empty scheme falls back to DefaultScheme.
func NewSiteIdentity(host, scheme string) SiteIdentity {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme == "" {
		scheme = DefaultScheme
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, ok := strings.Cut(host, ":"); ok && !strings.HasPrefix(host, "[") {
		host = h
	}
	return SiteIdentity{Host: host, Scheme: scheme}
}

// ParseSiteIdentity derives the site identity from the deployment's canonical
// base URL (e.g. "https://www.example.com/blog").
func ParseSiteIdentity(baseURL string) (SiteIdentity, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return SiteIdentity{}, errors.Join(ErrInvalidBaseURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return SiteIdentity{}, ErrInvalidBaseURL
	}
	if u.Hostname() == "" {
		return SiteIdentity{}, ErrInvalidBaseURL
	}
	return NewSiteIdentity(u.Hostname(), scheme), nil
}

// NormalizedHost returns the host used for comparisons.
func (s SiteIdentity) NormalizedHost() string {
	return NormalizeHost(s.Host)
}

// HomeURL returns the site's root URL, e.g. "https://example.com/".
func (s SiteIdentity) HomeURL() string {
	return s.Scheme + "://" + s.Host + "/"
}

// IsZero reports whether the identity carries no host.
func (s SiteIdentity) IsZero() bool {
	return s.Host == ""
}

// NormalizeHost lowercases a host name and strips a single leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}
