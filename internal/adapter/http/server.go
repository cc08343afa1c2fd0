package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// Forecaster is the pipeline surface served over HTTP.
type Forecaster interface {
	sharedobs.ReadinessChecker
	Run(ctx context.Context, query string, radiusMeters int) (domain.ForecastResult, error)
	Stations(ctx context.Context) ([]domain.Station, error)
	InvalidateCache(ctx context.Context, query string) (key string, enabled bool, err error)
	PurgeCache() bool
}

// Options configures the API server.
type Options struct {
	Addr            string
	CORSOrigins     []string
	ForecastTimeout time.Duration
	MaxConcurrent   int
}

// Server exposes health, readiness, metrics and the forecast API.
type Server struct {
	httpServer *http.Server
	svc        Forecaster
	sem        *semaphore.Weighted
	timeout    time.Duration
	logger     *slog.Logger
}

// NewServer creates the HTTP server and its routes.
func NewServer(opts Options, svc Forecaster, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:        opts.Addr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			// Forecasts train a model per request.
			WriteTimeout: opts.ForecastTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:     svc,
		sem:     semaphore.NewWeighted(int64(max(opts.MaxConcurrent, 1))),
		timeout: opts.ForecastTimeout,
		logger:  logger,
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(svc))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stations", s.handleStations)
		r.Get("/forecast", s.handleForecast)
		r.Delete("/cache", s.handlePurgeCache)
		r.Delete("/cache/{station}", s.handleInvalidateCache)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
