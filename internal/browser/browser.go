// Package browser runs the live DOM processor against a real page driven by
// go-rod. Page implements dom.Document and dom.Observer: anchors are looked
// up with CSS selectors, keyed by their CDP backend node id, and mutations
// are reported by an injected MutationObserver through a runtime binding.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultNavigationTimeout bounds page navigation.
const DefaultNavigationTimeout = 30 * time.Second

// Options configures a Session.
type Options struct {
	// RemoteURL is the DevTools WebSocket URL of a running browser.
	// Empty launches a local headless Chrome.
	RemoteURL string

	// Headful shows the browser window of a locally launched browser.
	Headful bool

	// NavigationTimeout bounds Open. Zero means DefaultNavigationTimeout.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Session owns a browser connection.
type Session struct {
	opts    Options
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Launch starts a local browser or connects to opts.RemoteURL.
func Launch(opts Options) (*Session, error) {
	opts.defaults()
	s := &Session{opts: opts}

	wsURL := opts.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(!opts.Headful)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		wsURL = u
		s.lnch = l
		opts.Logger.Debug("launched local browser", "url", wsURL)
	} else {
		opts.Logger.Debug("connecting to remote browser", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.killLauncher()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = b
	return s, nil
}

// Open navigates a new tab to pageURL and waits for it to load.
func (s *Session) Open(ctx context.Context, pageURL string) (*Page, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.opts.Logger.Warn("page load did not complete", "url", pageURL, "error", err)
	}

	return newPage(ctx, page, pageURL, s.opts.Logger), nil
}

// Close disconnects from the browser and stops it if it was launched.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		if s.lnch != nil {
			err = s.browser.Close()
		}
		s.browser = nil
	}
	s.killLauncher()
	return err
}

func (s *Session) killLauncher() {
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch.Cleanup()
		s.lnch = nil
	}
}
