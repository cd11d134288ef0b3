package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"variaciones/internal/ledger"
	applog "variaciones/internal/log"
	"variaciones/internal/services"
	appweb "variaciones/web"
)

const requestIDHeader = "X-Request-ID"

// VarianceReader is what the handlers need from the variance service.
type VarianceReader interface {
	Snapshot(ctx context.Context) (ledger.Snapshot, error)
	Refresh(ctx context.Context) (ledger.Snapshot, error)
	Periods(ctx context.Context) ([]string, error)
	Summary(ctx context.Context, period string) (services.SummaryView, error)
	CostCenters(ctx context.Context, period string) ([]string, error)
	Detail(ctx context.Context, period, costCenter string) (services.DetailView, error)
	Page(ctx context.Context, period, costCenter string) (services.PageView, error)
}

// Layouts accepted by Presentation.Layout.
const (
	LayoutWide     = "wide"
	LayoutCentered = "centered"
)

// Presentation holds the page texts and layout.
type Presentation struct {
	Title    string
	Subtitle string
	Layout   string
}

func (p Presentation) withDefaults() Presentation {
	if p.Title == "" {
		p.Title = "Análisis de Variaciones"
	}
	if p.Layout != LayoutCentered {
		p.Layout = LayoutWide
	}
	return p
}

// Options tunes the server. Zero values use defaults.
type Options struct {
	Presentation Presentation
	Logger       *applog.Logger
	RateLimit    int
}

type Server struct {
	http.Server
	templates    *template.Template
	variance     VarianceReader
	presentation Presentation
	logger       *applog.Logger
	rateLimiter  *rateLimiter
	security     *securityMetrics
	started      time.Time
	shutdownOnce sync.Once
}

func NewServer(addr string, variance VarianceReader, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	httpLogger := logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		variance:     variance,
		presentation: opts.Presentation.withDefaults(),
		logger:       httpLogger,
		rateLimiter:  newRateLimiter(opts.RateLimit),
		security:     &securityMetrics{},
		started:      time.Now(),
	}

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		httpLogger.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		httpLogger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("GET /ui/summary", s.withSecurityHeaders(s.handleSummaryPartial))
	mux.HandleFunc("GET /ui/detail", s.withSecurityHeaders(s.handleDetailPartial))

	mux.HandleFunc("GET /api/periods", s.withSecurityHeaders(s.handleAPIPeriods))
	mux.HandleFunc("GET /api/summary", s.withSecurityHeaders(s.handleAPISummary))
	mux.HandleFunc("GET /api/cost-centers", s.withSecurityHeaders(s.handleAPICostCenters))
	mux.HandleFunc("GET /api/detail", s.withSecurityHeaders(s.handleAPIDetail))
	mux.HandleFunc("POST /api/refresh", s.withSecurityHeaders(s.handleRefresh))

	var handler http.Handler = mux
	handler = applog.RequestIDMiddleware(requestIDFrom)(handler)
	handler = applog.Middleware(httpLogger)(handler)
	s.Handler = assignRequestID(handler)

	return s
}

// Shutdown stops background work and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// assignRequestID gives every request a fresh ID on both the request and
// the response.
func assignRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := generateRequestID()
		r.Header.Set(requestIDHeader, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestIDFrom(r *http.Request) string { return r.Header.Get(requestIDHeader) }

// withSecurityHeaders adds security headers, rate limiting and request
// logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := applog.FromContext(ctx)
		clientIP := extractClientIP(r)

		logger.DebugContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		if detectSuspiciousRequest(r, s.security) {
			logger.WithComponent(applog.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path,
				applog.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.security) {
			logger.WithComponent(applog.ComponentSecurity).WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		applog.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (s *Server) logError(ctx context.Context, msg string, err error, op string) {
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, msg, err, applog.ComponentHTTP, op, nil)
}
