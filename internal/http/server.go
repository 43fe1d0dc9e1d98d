// Package http provides the REST API for promptpack.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/promptpack/internal/logging"
	"github.com/fyrsmithlabs/promptpack/internal/metrics"
	"github.com/fyrsmithlabs/promptpack/internal/project"
	"github.com/fyrsmithlabs/promptpack/internal/secrets"
)

// Server serves the project registry over HTTP.
type Server struct {
	echo     *echo.Echo
	manager  project.Manager
	scrubber secrets.Scrubber
	metrics  *metrics.Metrics
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// RateLimit is requests per second per client IP, 0 disables limiting.
	RateLimit float64

	// HeaderPaths renders prompt file headers as slash paths.
	HeaderPaths bool

	// ScrubSecrets redacts secrets from prompt file content.
	ScrubSecrets bool
}

// Option configures a Server.
type Option func(*Server)

// WithScrubber sets the scrubber used when ScrubSecrets is on.
func WithScrubber(s secrets.Scrubber) Option {
	return func(srv *Server) { srv.scrubber = s }
}

// WithMetrics records prompt sizes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// NewServer creates a new HTTP server.
func NewServer(mgr project.Manager, logger *logging.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if mgr == nil {
		return nil, errors.New("project manager cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		manager:  mgr,
		scrubber: secrets.NoopScrubber{},
		logger:   logger.Named("http"),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.tracing)
	e.Use(s.requestContext)
	e.Use(s.requestLogger)
	e.Use(NewHTTPMetrics(s.logger).MetricsMiddleware())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     burstFor(cfg.RateLimit),
				ExpiresIn: 3 * time.Minute,
			},
		)))
	}

	s.registerRoutes()

	return s, nil
}

// burstFor allows short spikes of twice the steady rate, at least one.
func burstFor(r float64) int {
	b := int(r * 2)
	if b < 1 {
		return 1
	}
	return b
}

// tracing starts a server span per request. Log lines written while the
// span is open carry its trace and span ids.
func (s *Server) tracing(next echo.HandlerFunc) echo.HandlerFunc {
	tracer := otel.Tracer(httpInstrumentationName)
	return func(c echo.Context) error {
		req := c.Request()
		ctx, span := tracer.Start(req.Context(), req.Method+" "+routeOf(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", req.Method)),
		)
		defer span.End()
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		status := c.Response().Status
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return err
	}
}

// requestContext carries the request id into the request context so that
// registry logs correlate with the access log.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logging.WithRequestID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.GET("/projects", s.handleListProjects)
	v1.POST("/projects", s.handleCreateProject)
	v1.GET("/projects/:id", s.handleGetProject)
	v1.PATCH("/projects/:id", s.handleRenameProject)
	v1.DELETE("/projects/:id", s.handleDeleteProject)
	v1.POST("/projects/:id/select", s.handleSelectProject)
	v1.GET("/projects/:id/export", s.handleExportProject)
	v1.POST("/import", s.handleImport)

	active := v1.Group("/active")
	active.GET("", s.handleActive)
	active.PUT("/instructions", s.handleSetInstructions)
	active.POST("/clear", s.handleClear)
	active.GET("/nodes", s.handleListNodes)
	active.POST("/nodes", s.handleAddNode)
	active.GET("/nodes/:id", s.handleGetNode)
	active.PATCH("/nodes/:id", s.handleRenameNode)
	active.DELETE("/nodes/:id", s.handleRemoveNode)
	active.POST("/nodes/:id/move", s.handleMoveNode)
	active.GET("/nodes/:id/content", s.handleGetContent)
	active.PUT("/nodes/:id/content", s.handleSetContent)
	active.PUT("/selection", s.handleSelectNode)
	active.POST("/reorder", s.handleReorder)
	active.GET("/prompt", s.handlePrompt)
	active.GET("/suggestions", s.handleSuggestions)
}

// ServeHTTP lets the server be mounted or driven by httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
