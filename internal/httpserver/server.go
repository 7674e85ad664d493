package httpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pastebin/internal/id"
	"pastebin/internal/paste"
	"pastebin/internal/render"
	"pastebin/internal/security"
	"pastebin/internal/storage"
	"pastebin/web"
)

// DefaultMaxBytes is the largest accepted paste content.
const DefaultMaxBytes = 25 << 20

// Renderer turns paste content into HTML pages.
type Renderer interface {
	Markdown(w io.Writer, src []byte) error
	Highlight(w io.Writer, src []byte, lang string) error
}

// Config captures server configuration.
type Config struct {
	Store       storage.Store
	IDGenerator *id.Generator
	MaxBytes    int
	MaxAttempts int
	RateLimiter *RateLimiter
	TrustProxy  bool
	BaseURL     string
	Logger      *slog.Logger
	BasicAuth   security.Credentials
	Renderer    Renderer

	// Cache-Control max-age in seconds for paste and static page responses.
	// Zero omits the header.
	CachePasteAge      int
	CacheStaticPageAge int

	Favicon       string
	Repo          string
	TOSMaintainer string
	TOSMail       string
	Metrics       bool
	Now           func() time.Time
}

// Server wraps HTTP handling logic.
type Server struct {
	pastes     *paste.Service
	store      storage.Store
	router     chi.Router
	templates  *template.Template
	renderer   Renderer
	maxBytes   int
	limiter    *RateLimiter
	trustProxy bool
	baseURL    *url.URL
	logger     *slog.Logger
	auth       security.Credentials
	metrics    bool

	pasteAge  int
	staticAge int
	favicon   string
	repo      string
	apiPage   []byte
	tosPage   []byte
}

// New constructs a new Server instance.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Renderer == nil {
		r, err := render.New("")
		if err != nil {
			return nil, err
		}
		cfg.Renderer = r
	}

	pastes, err := paste.New(paste.Config{
		Store:       cfg.Store,
		IDs:         cfg.IDGenerator,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      cfg.Logger,
		Now:         cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := template.ParseFS(web.Templates, "templates/index.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	var parsedBase *url.URL
	if cfg.BaseURL != "" {
		parsedBase, err = url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base url: %w", err)
		}
		if parsedBase.Scheme == "" || parsedBase.Host == "" {
			return nil, errors.New("base url must include scheme and host")
		}
		parsedBase.Path = strings.TrimSuffix(parsedBase.Path, "/")
	}

	srv := &Server{
		pastes:     pastes,
		store:      cfg.Store,
		router:     chi.NewRouter(),
		templates:  tmpl,
		renderer:   cfg.Renderer,
		maxBytes:   cfg.MaxBytes,
		limiter:    cfg.RateLimiter,
		trustProxy: cfg.TrustProxy,
		baseURL:    parsedBase,
		logger:     cfg.Logger,
		auth:       cfg.BasicAuth,
		metrics:    cfg.Metrics,
		pasteAge:   cfg.CachePasteAge,
		staticAge:  cfg.CacheStaticPageAge,
		favicon:    cfg.Favicon,
		repo:       cfg.Repo,
	}
	if err := srv.buildDocs(cfg); err != nil {
		return nil, err
	}
	srv.routes()
	return srv, nil
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	if s.metrics {
		r.Use(MetricsMiddleware)
	}
	r.Use(RateLimitMiddleware(s.limiter, func(r *http.Request) string {
		return ClientIP(r, s.trustProxy)
	}))
	r.Use(middleware.Compress(5, "text/html", "text/plain", "text/css", "application/json"))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.GetHead)
	r.Use(CORS)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, paste.Errorf(http.StatusMethodNotAllowed, "method not allowed"))
	})

	r.Get("/healthz", s.handleHealth)
	if s.metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Handle("/static/*", http.FileServer(http.FS(web.Static)))

	r.Post("/", s.handleCreate)
	for _, pattern := range []string{"/", "/*"} {
		r.Get(pattern, s.handleGet)
		r.Put(pattern, s.handleUpdate)
		r.Delete(pattern, s.handleDelete)
		r.Options(pattern, s.handleOptions)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth reports ok, checking the store first when it can be pinged.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("store ping failed", "error", err)
			s.writeError(w, r, paste.Errorf(http.StatusServiceUnavailable, "store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type indexPageData struct {
	Title    string
	BaseURL  string
	Favicon  string
	Repo     string
	MaxBytes int
}

type tosData struct {
	Maintainer string
	Mail       string
	BaseURL    string
}

// buildDocs renders the API and terms pages once; they only depend on configuration.
func (s *Server) buildDocs(cfg Config) error {
	api, err := web.Static.ReadFile("static/api.md")
	if err != nil {
		return fmt.Errorf("read api doc: %w", err)
	}
	var buf bytes.Buffer
	if err := s.renderer.Markdown(&buf, api); err != nil {
		return fmt.Errorf("render api doc: %w", err)
	}
	s.apiPage = bytes.Clone(buf.Bytes())

	tos, err := texttemplate.ParseFS(web.Static, "static/tos.md")
	if err != nil {
		return fmt.Errorf("parse terms: %w", err)
	}
	base := cfg.BaseURL
	if base == "" {
		base = "this service"
	}
	var md bytes.Buffer
	if err := tos.Execute(&md, tosData{Maintainer: cfg.TOSMaintainer, Mail: cfg.TOSMail, BaseURL: base}); err != nil {
		return fmt.Errorf("execute terms: %w", err)
	}
	buf.Reset()
	if err := s.renderer.Markdown(&buf, md.Bytes()); err != nil {
		return fmt.Errorf("render terms: %w", err)
	}
	s.tosPage = bytes.Clone(buf.Bytes())
	return nil
}

func (s *Server) isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if s.trustProxy {
		proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto"))
		if proto == "https" {
			return true
		}
	}
	return false
}

// base returns the URL prefix used in responses, without a trailing slash.
func (s *Server) base(r *http.Request) string {
	if s.baseURL != nil {
		return s.baseURL.String()
	}
	scheme := "http"
	if s.isSecureRequest(r) {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}

// relBase is the path prefix for links inside served pages.
func (s *Server) relBase() string {
	if s.baseURL != nil {
		return s.baseURL.String()
	}
	return ""
}
