package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"luxstock/internal/core"
	"luxstock/internal/log"
	"luxstock/internal/metrics"
	"luxstock/internal/middleware/ratelimit"
	"luxstock/internal/middleware/security"
	"luxstock/internal/middleware/trace"
	appweb "luxstock/web"
)

// Inventory is the service the handlers drive; *services.InventoryService
// satisfies it.
type Inventory interface {
	MonthlyView(ctx context.Context, year, month int) (core.View, error)
	YearlyView(ctx context.Context, year int) (core.View, error)
	Dashboard(ctx context.Context, year, month int) (core.View, core.View, error)
	CreateItem(ctx context.Context, n core.NewItem) (core.DerivedItem, error)
	UpdateItem(ctx context.Context, id string, patch core.ItemPatch) (core.DerivedItem, error)
	DeleteItem(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	inventory Inventory
	templates *template.Template
	metrics   *metrics.Metrics
	logger    *log.Logger

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	rateConfig  ratelimit.Config

	now     func() time.Time
	started time.Time

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentHTTP)
		}
	}
}

// WithRateLimit sets the per-IP budget for mutating requests per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute > 0 {
			s.rateConfig.RequestsPerMinute = perMinute
		}
	}
}

// WithClock replaces time.Now for default period selection.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, inv Inventory, opts ...Option) *Server {
	s := &Server{
		inventory:  inv,
		logger:     log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP),
		detector:   security.NewDetector(),
		rateConfig: ratelimit.DefaultConfig(),
		now:        time.Now,
		started:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rateLimiter = ratelimit.NewLimiter(s.rateConfig)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	s.route(mux, "/", s.handleIndex)
	s.route(mux, "/api/inventory", s.handleInventoryAPI)
	s.route(mux, "/ui/inventory", s.handleInventoryPartial)
	s.route(mux, "/ui/items", s.handleCreateItemForm)
	s.route(mux, "/ui/items/update", s.handleUpdateItemForm)
	s.route(mux, "/ui/items/delete", s.handleDeleteItemForm)
	s.route(mux, "/healthz", s.handleHealth)
	s.route(mux, "/readyz", s.handleReady)
	mux.Handle("/metrics", s.metrics.Handler())

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detector.Middleware(s.onSuspicious)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.metrics.InstrumentHandler(pattern, h))
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.ObserveSecurityEvent("rate_limited")
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.NewFields().
			WithClientIP(s.detector.ExtractClientIP(r)).
			WithHTTPRequest(r.Method, r.URL.Path, "", "").
			ToSlice()...)

	const msg = "Rate limit exceeded. Please try again later."
	if isAPIRequest(r) {
		writeJSONError(w, http.StatusTooManyRequests, msg)
		return
	}
	ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
}

func (s *Server) onSuspicious(*http.Request, string) {
	s.metrics.ObserveSecurityEvent("suspicious")
}

// Shutdown stops the rate limiter and drains the HTTP server. It is safe
// to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
