// Package provider supplies the site identity and the effective options to
// the rewriters and the live processor.
//
// Options are layered: built-in defaults, then the config file defaults,
// then the config file entry for the site, then the settings stored in the
// database. A stored record replaces the file values as a whole because it
// is written from a complete set of options.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/linkmark/internal/bootstrap"
	"github.com/nao1215/linkmark/internal/config"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/settings"
)

var (
	// ErrInvalidBaseURL is returned when the canonical base URL is unusable.
	ErrInvalidBaseURL = model.ErrInvalidBaseURL

	// ErrNoStore is returned by operations that need a settings store.
	ErrNoStore = errors.New("no settings store configured")
)

// Store is the subset of the settings store the provider needs.
// *settings.Store satisfies this interface.
type Store interface {
	Get(ctx context.Context, host string) (*settings.Record, error)
	Put(ctx context.Context, host string, opts model.Options) error
	Delete(ctx context.Context, host string) (bool, error)
}

// Provider resolves options for one site.
type Provider struct {
	site   model.SiteIdentity
	file   *config.File
	store  Store
	boot   *bootstrap.Service
	logger *slog.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithFile sets the parsed configuration file.
func WithFile(f *config.File) Option {
	return func(p *Provider) {
		p.file = f
	}
}

// WithStore sets the settings store consulted after the file.
func WithStore(s Store) Option {
	return func(p *Provider) {
		p.store = s
	}
}

// WithBootstrap sets the service that caches bootstrap payloads.
func WithBootstrap(s *bootstrap.Service) Option {
	return func(p *Provider) {
		p.boot = s
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Provider for the site at baseURL, e.g. "https://example.com/blog".
func New(baseURL string, opts ...Option) (*Provider, error) {
	site, err := model.ParseSiteIdentity(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	return NewForSite(site, opts...), nil
}

// NewForSite creates a Provider for an already derived site identity.
func NewForSite(site model.SiteIdentity, opts ...Option) *Provider {
	p := &Provider{site: site, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.boot == nil {
		p.boot = bootstrap.NewService(nil, bootstrap.WithLogger(p.logger))
	}
	return p
}

// Site returns the site identity.
func (p *Provider) Site() model.SiteIdentity {
	return p.site
}

// Options returns the effective options of the site.
func (p *Provider) Options(ctx context.Context) (model.Options, error) {
	opts := p.file.Options(p.site.Host)
	if p.store == nil {
		return opts, nil
	}

	rec, err := p.store.Get(ctx, p.site.Host)
	if err != nil {
		return model.Options{}, fmt.Errorf("failed to load stored settings: %w", err)
	}
	if rec != nil {
		p.logger.Debug("using stored settings", "site", p.site.Host, "updated_at", rec.UpdatedAt)
		opts = rec.Options
	}
	return opts, nil
}

// LinkConfig returns the link configuration snapshot for one pass.
func (p *Provider) LinkConfig(ctx context.Context) (model.LinkConfiguration, error) {
	opts, err := p.Options(ctx)
	if err != nil {
		return model.LinkConfiguration{}, err
	}
	return opts.Link.Clone(), nil
}

// Bootstrap returns the encoded client-mode bootstrap payload.
func (p *Provider) Bootstrap(ctx context.Context) ([]byte, error) {
	return p.boot.Payload(ctx, p.site, p.Options)
}

// Save validates and stores opts for the site. Values from untrusted
// sources are sanitized first. The cached bootstrap payload is dropped.
func (p *Provider) Save(ctx context.Context, opts model.Options, untrusted bool) (model.Options, error) {
	if p.store == nil {
		return model.Options{}, ErrNoStore
	}

	opts = config.Sanitize(opts, untrusted)
	if err := config.ValidateOptions(opts); err != nil {
		return model.Options{}, err
	}
	if err := p.store.Put(ctx, p.site.Host, opts); err != nil {
		return model.Options{}, err
	}
	return opts, p.invalidate(ctx)
}

// Reset removes the stored settings so the file and built-in defaults apply
// again. It reports whether anything was stored.
func (p *Provider) Reset(ctx context.Context) (bool, error) {
	if p.store == nil {
		return false, ErrNoStore
	}

	deleted, err := p.store.Delete(ctx, p.site.Host)
	if err != nil {
		return false, err
	}
	return deleted, p.invalidate(ctx)
}

func (p *Provider) invalidate(ctx context.Context) error {
	if err := p.boot.Invalidate(ctx, p.site); err != nil {
		return err
	}
	p.logger.Debug("bootstrap cache invalidated", "site", p.site.Host)
	return nil
}
