package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nao1215/linkmark/internal/icon"
	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/provider"
)

// Default server settings.
const (
	DefaultShutdownTimeout = 10 * time.Second
	// maxSettingsBody limits PUT /linkmark/settings payloads.
	maxSettingsBody = 1 << 20
)

// Server serves site content with external links annotated.
type Server struct {
	provider   *provider.Provider
	icons      *icon.Renderer
	root       http.FileSystem
	adminToken string
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRoot sets the directory content is served from.
func WithRoot(dir string) Option {
	return func(s *Server) {
		s.root = http.Dir(dir)
	}
}

// WithFileSystem sets the file system content is served from.
func WithFileSystem(fsys http.FileSystem) Option {
	return func(s *Server) {
		s.root = fsys
	}
}

// WithIcons sets the icon renderer.
func WithIcons(r *icon.Renderer) Option {
	return func(s *Server) {
		s.icons = r
	}
}

// WithAdminToken enables settings writes for requests carrying
// "Authorization: Bearer <token>". Without a token writes are refused.
func WithAdminToken(token string) Option {
	return func(s *Server) {
		s.adminToken = token
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server for the site managed by p. Content is served from
// the current directory unless WithRoot is given.
func New(p *provider.Provider, opts ...Option) *Server {
	s := &Server{
		provider: p,
		root:     http.Dir("."),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.icons == nil {
		s.icons = icon.New(icon.WithLogger(s.logger))
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/linkmark", func(r chi.Router) {
		r.Get("/bootstrap.json", s.handleBootstrap)
		r.Get("/style.css", s.handleStylesheet)
		r.Get("/icons/{name}.svg", s.handleIcon)

		r.Get("/settings", s.handleGetSettings)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Put("/settings", s.handlePutSettings)
			r.Delete("/settings", s.handleDeleteSettings)
		})
	})

	r.With(s.annotate).Handle("/*", http.FileServer(s.root))
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", ln.Addr().String(), "site", s.provider.Site().Host)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	payload, err := s.provider.Bootstrap(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(payload)
}

func (s *Server) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	opts, err := s.provider.Options(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(icon.Stylesheet(opts)))
}

func (s *Server) handleIcon(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if icon.SanitizeFileName(name) != name || !slices.Contains(s.icons.Names(), name) {
		http.NotFound(w, r)
		return
	}
	data, ok := s.icons.SVG(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	opts, err := s.provider.Options(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var opts model.Options
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid settings: %w", err))
		return
	}

	saved, err := s.provider.Save(r.Context(), opts, true)
	switch {
	case errors.Is(err, provider.ErrNoStore):
		s.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	s.logger.Info("settings updated", "site", s.provider.Site().Host)
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteSettings(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.provider.Reset(r.Context())
	switch {
	case errors.Is(err, provider.ErrNoStore):
		s.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.logger.Info("settings reset", "site", s.provider.Site().Host)
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin rejects requests without the admin bearer token.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			s.writeError(w, http.StatusForbidden, errors.New("settings are read-only"))
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="linkmark"`)
			s.writeError(w, http.StatusUnauthorized, errors.New("invalid admin token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
