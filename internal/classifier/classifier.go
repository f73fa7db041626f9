package classifier

import (
	"net/url"
	"strings"

	"github.com/nao1215/linkmark/internal/model"
)

// specialSchemes are schemes that never denote a web page.
var specialSchemes = map[string]bool{
	"javascript": true,
	"mailto":     true,
	"tel":        true,
	"sms":        true,
	"ftp":        true,
}

// Classifier holds the normalized site host and exclusion sets for one pass.
// It is safe for concurrent use.
type Classifier struct {
	siteHost       string
	siteScheme     string
	excludeClasses map[string]struct{}
	excludeDomains []string
}

// New precomputes the comparison data for a site and configuration.
func New(site model.SiteIdentity, cfg model.LinkConfiguration) *Classifier {
	c := &Classifier{
		siteHost:       site.NormalizedHost(),
		siteScheme:     site.Scheme,
		excludeClasses: make(map[string]struct{}, len(cfg.ExcludeClasses)),
		excludeDomains: make([]string, 0, len(cfg.ExcludeDomains)),
	}
	if c.siteScheme == "" {
		c.siteScheme = model.DefaultScheme
	}

	for _, class := range cfg.ExcludeClasses {
		class = strings.TrimSpace(class)
		if class != "" {
			c.excludeClasses[class] = struct{}{}
		}
	}
	for _, domain := range cfg.ExcludeDomains {
		domain = model.NormalizeHost(domain)
		if domain != "" {
			c.excludeDomains = append(c.excludeDomains, domain)
		}
	}
	return c
}

// Classify returns the classification of one anchor.
func Classify(href string, classes []string, site model.SiteIdentity, cfg model.LinkConfiguration) model.Classification {
	return New(site, cfg).Classify(href, classes)
}

// Classify returns the classification of an href carrying the given class tokens.
func (c *Classifier) Classify(href string, classes []string) model.Classification {
	href = strings.TrimSpace(href)
	if isSpecial(href) {
		return model.Special
	}

	host, ok := c.absoluteHost(href)
	if !ok {
		return model.Internal
	}

	if host == c.siteHost {
		return model.Internal
	}
	if c.hasExcludedClass(classes) {
		return model.ExcludedByClass
	}
	if c.isExcludedDomain(host) {
		return model.ExcludedByDomain
	}
	return model.External
}

// Host returns the normalized host of an absolute http(s) href, resolving
// protocol-relative hrefs with the site scheme. ok is false for anything
// the classifier would treat as relative, special or unparseable.
func (c *Classifier) Host(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if isSpecial(href) {
		return "", false
	}
	return c.absoluteHost(href)
}

// absoluteHost implements the relative-link test and URL parsing steps.
func (c *Classifier) absoluteHost(href string) (string, bool) {
	if strings.HasPrefix(href, "//") {
		href = c.siteScheme + ":" + href
	}
	if strings.HasPrefix(href, "/") || strings.HasPrefix(href, "?") {
		return "", false
	}
	if !hasHTTPScheme(href) {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	host := model.NormalizeHost(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

func (c *Classifier) hasExcludedClass(classes []string) bool {
	if len(c.excludeClasses) == 0 {
		return false
	}
	for _, class := range classes {
		if _, ok := c.excludeClasses[class]; ok {
			return true
		}
	}
	return false
}

func (c *Classifier) isExcludedDomain(host string) bool {
	for _, domain := range c.excludeDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// isSpecial reports whether href is empty, a fragment or uses a special scheme.
func isSpecial(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	scheme, _, found := strings.Cut(href, ":")
	if !found {
		return false
	}
	return specialSchemes[strings.ToLower(strings.TrimSpace(scheme))]
}

func hasHTTPScheme(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
