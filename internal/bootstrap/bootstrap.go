// Package bootstrap builds and caches the client-mode bootstrap payload:
// the JSON value a host page hands to the live DOM processor at startup.
//
// The payload carries the site identity and, in client mode only, the link
// configuration. Payloads are cached per site under a key derived from the
// site's home URL, either in process (MemoryCache) or in Redis (RedisCache)
// when several servers share one configuration.
package bootstrap

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/linkmark/internal/model"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "linkmark_script_data_"

// DefaultTTL is how long a payload stays cached.
const DefaultTTL = time.Hour

// Key returns the cache key for site.
func Key(site model.SiteIdentity) string {
	sum := sha3.Sum256([]byte(site.HomeURL()))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Build returns the payload for site. The link configuration is included
// only when opts select client mode.
func Build(site model.SiteIdentity, opts model.Options) model.Bootstrap {
	if opts.Mode != model.ModeClient {
		return model.NewBootstrap(site, nil)
	}
	cfg := opts.Link.Clone()
	return model.NewBootstrap(site, &cfg)
}

// Cache stores encoded payloads.
type Cache interface {
	// Get returns the cached value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// LoadFunc returns the current options of a site.
type LoadFunc func(ctx context.Context) (model.Options, error)

// Service serves cached payloads.
type Service struct {
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service. A nil cache uses a new MemoryCache.
func NewService(cache Cache, opts ...Option) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	s := &Service{cache: cache, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Payload returns the encoded payload for site, calling load on a cache
// miss. Cache failures are logged and the payload is built directly.
func (s *Service) Payload(ctx context.Context, site model.SiteIdentity, load LoadFunc) ([]byte, error) {
	key := Key(site)

	data, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn("bootstrap cache read failed", "site", site.Host, "error", err)
	case ok:
		return data, nil
	}

	opts, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load options for %s: %w", site.Host, err)
	}

	data, err = json.Marshal(Build(site, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to encode bootstrap payload: %w", err)
	}

	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn("bootstrap cache write failed", "site", site.Host, "error", err)
	}
	return data, nil
}

// Invalidate drops the cached payload of site.
func (s *Service) Invalidate(ctx context.Context, site model.SiteIdentity) error {
	if err := s.cache.Delete(ctx, Key(site)); err != nil {
		return fmt.Errorf("failed to invalidate bootstrap cache: %w", err)
	}
	return nil
}
