package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"access_router/pkg/metrics"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxConcurrent  int
	RateLimit      float64 // requests per second across all routes; 0 disables
	RateBurst      int
	CORSOrigin     string
	Logger         *slog.Logger
	Metrics        *metrics.HTTP
	Gatherer       prometheus.Gatherer // served on /metrics when set
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(addr string) ServerConfig {
	return ServerConfig{
		Addr:           addr,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 25 * time.Second,
		MaxConcurrent:  runtime.NumCPU() * 2,
		CORSOrigin:     "",
	}
}

// NewServer creates an HTTP server with all routes and middleware.
func NewServer(cfg ServerConfig, handlers *Handlers) *http.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewHTTP(nil)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU() * 2
	}
	mux := http.NewServeMux()

	// Concurrency and rate limiters.
	lim := limits{sem: make(chan struct{}, cfg.MaxConcurrent)}
	if cfg.RateLimit > 0 {
		lim.rate = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}

	// Routes.
	mux.HandleFunc("POST /api/v1/matrix", withMiddleware("matrix", handlers.HandleMatrix, lim, cfg))
	mux.HandleFunc("POST /api/v1/path", withMiddleware("path", handlers.HandlePath, lim, cfg))
	mux.HandleFunc("GET /api/v1/health", withMiddleware("health", handlers.HandleHealth, lim, cfg))
	mux.HandleFunc("GET /api/v1/stats", withMiddleware("stats", handlers.HandleStats, lim, cfg))
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// ListenAndServe starts the server and blocks until shutdown signal or ctx
// cancellation.
func ListenAndServe(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusRecorder captures the response code for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	code  int
	wrote bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wrote {
		return
	}
	s.code = code
	s.wrote = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

// limits is shared by every route of a server. rate may be nil.
type limits struct {
	sem  chan struct{}
	rate *rate.Limiter
}

// withMiddleware wraps a handler with logging, metrics, recovery, security
// headers, and rate and concurrency limiting.
func withMiddleware(route string, handler http.HandlerFunc, lim limits, cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Security headers.
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		// CORS.
		if cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSOrigin)
		}

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		defer func() {
			cfg.Metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
			cfg.Metrics.Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		if lim.rate != nil && !lim.rate.Allow() {
			rec.Header().Set("Retry-After", "1")
			writeError(rec, http.StatusTooManyRequests, "rate_limited", "")
			return
		}

		// Concurrency limiter.
		select {
		case lim.sem <- struct{}{}:
			defer func() { <-lim.sem }()
		default:
			rec.Header().Set("Retry-After", "1")
			writeError(rec, http.StatusServiceUnavailable, "service_unavailable", "")
			return
		}

		// Recovery.
		defer func() {
			if p := recover(); p != nil {
				cfg.Logger.Error("handler panic", "route", route, "panic", p)
				// A started response cannot be replaced.
				if !rec.wrote {
					writeError(rec, http.StatusInternalServerError, "internal_error", "")
				}
			}
		}()

		// Request timeout.
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		handler(rec, r.WithContext(ctx))
		cfg.Logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.code, "elapsed", time.Since(start).Round(time.Microsecond))
	}
}
