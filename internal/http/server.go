// Package http provides the HTTP API for agentd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentd/internal/assets"
	"github.com/fyrsmithlabs/agentd/internal/experience"
	"github.com/fyrsmithlabs/agentd/internal/orchestrator"
	"github.com/fyrsmithlabs/agentd/internal/vault"
)

// TaskRunner executes one task end to end. *orchestrator.Executor satisfies
// this.
type TaskRunner interface {
	Execute(ctx context.Context, req orchestrator.TaskRequest) (*experience.Experience, error)
}

// Server provides HTTP endpoints for agentd.
type Server struct {
	echo   *echo.Echo
	runner TaskRunner
	store  experience.Store
	vault  *vault.Vault
	assets *assets.Manager
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates the API server. The asset manager may be nil, in which
// case model routes report 503.
func NewServer(runner TaskRunner, store experience.Store, v *vault.Vault, am *assets.Manager, logger *zap.Logger, cfg *Config) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("task runner cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("experience store cannot be nil")
	}
	if v == nil {
		return nil, fmt.Errorf("credential vault cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9090}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:   e,
		runner: runner,
		store:  store,
		vault:  v,
		assets: am,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")

	v1.POST("/tasks", s.handleExecuteTask)

	v1.GET("/experiences", s.handleListExperiences)
	v1.DELETE("/experiences", s.handleClearExperiences)
	v1.GET("/experiences/search", s.handleSearchExperiences)
	v1.GET("/experiences/stats", s.handleExperienceStats)
	v1.GET("/experiences/export", s.handleExportExperiences)
	v1.GET("/experiences/:id", s.handleGetExperience)
	v1.DELETE("/experiences/:id", s.handleDeleteExperience)

	v1.GET("/credentials", s.handleListCredentials)
	v1.PUT("/credentials/:provider", s.handleStoreCredential)
	v1.DELETE("/credentials/:provider", s.handleDeleteCredential)
	v1.POST("/credentials/:provider/verify", s.handleVerifyCredential)

	v1.GET("/models", s.handleListModels)
	v1.POST("/models", s.handleDownloadModel)
	v1.POST("/models/:id/activate", s.handleActivateModel)
	v1.DELETE("/models/:id", s.handleDeleteModel)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
