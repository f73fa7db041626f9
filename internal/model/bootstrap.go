package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Bootstrap is the configuration value a client-mode host exposes at startup.
// Config is present only in client mode; a missing or null config means the
// processor runs with DefaultLinkConfiguration.
type Bootstrap struct {
	SiteHost   string             `json:"site_host"`
	SiteScheme string             `json:"site_scheme"`
	Config     *LinkConfiguration `json:"config,omitempty"`
}

// NewBootstrap builds the payload for a site. cfg may be nil.
func NewBootstrap(site SiteIdentity, cfg *LinkConfiguration) Bootstrap {
	b := Bootstrap{SiteHost: site.Host, SiteScheme: site.Scheme}
	if cfg != nil {
		c := cfg.Clone()
		b.Config = &c
	}
	return b
}

// Site returns the identity carried by the payload.
func (b Bootstrap) Site() SiteIdentity {
	return NewSiteIdentity(b.SiteHost, b.SiteScheme)
}

// LinkConfig returns the carried configuration or the defaults.
func (b Bootstrap) LinkConfig() LinkConfiguration {
	if b.Config == nil {
		return DefaultLinkConfiguration()
	}
	return b.Config.Clone()
}

// DecodeBootstrap parses a bootstrap payload. Fields missing from the nested
// config object keep their default values.
func DecodeBootstrap(data []byte) (Bootstrap, error) {
	var raw struct {
		SiteHost   string          `json:"site_host"`
		SiteScheme string          `json:"site_scheme"`
		Config     json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Bootstrap{}, fmt.Errorf("failed to decode bootstrap payload: %w", err)
	}

	b := Bootstrap{SiteHost: raw.SiteHost, SiteScheme: raw.SiteScheme}
	if len(raw.Config) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Config), []byte("null")) {
		cfg := DefaultLinkConfiguration()
		if err := json.Unmarshal(raw.Config, &cfg); err != nil {
			return Bootstrap{}, fmt.Errorf("failed to decode bootstrap config: %w", err)
		}
		b.Config = &cfg
	}
	if b.SiteScheme == "" {
		b.SiteScheme = DefaultScheme
	}
	return b, nil
}
