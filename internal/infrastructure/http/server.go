package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	handlers "github.com/loopwire/webhook-service/internal/adapter/handler/http"
	"github.com/loopwire/webhook-service/internal/config"
	"github.com/loopwire/webhook-service/internal/infrastructure/database"
	"github.com/loopwire/webhook-service/internal/middleware/auth"
	"github.com/loopwire/webhook-service/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	echo     *echo.Echo
	repos    *database.Repositories
	pipeline *usecase.WebhookPipeline
}

func NewServer(cfg *config.Config, logger *zap.Logger, repos *database.Repositories, pipeline *usecase.WebhookPipeline) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	return &Server{
		config:   cfg,
		logger:   logger,
		echo:     e,
		repos:    repos,
		pipeline: pipeline,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "webhook",
		})
	})

	// Initialize handlers
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.pipeline)
	adminHandler := handlers.NewAdminHandler(s.logger, s.repos.Event, s.repos.Log, s.repos.Alert, s.repos.Metric)

	// Intake endpoint; authenticated by the HMAC envelope, not JWT
	s.echo.POST("/webhooks/:provider", webhookHandler.HandleWebhook)

	// Operational routes (require JWT authentication)
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.AdminJWTSecret,
		Logger: s.logger,
	}

	internal := s.echo.Group("/api/v1/internal", auth.JWTMiddleware(jwtConfig))
	internal.GET("/dead-letter", adminHandler.ListDeadLettered)
	internal.POST("/dead-letter/:provider/:event_id/requeue", adminHandler.RequeueDeadLettered)
	internal.GET("/events/:event_id/log", adminHandler.GetEventLog)
	internal.GET("/alerts", adminHandler.ListAlerts)
	internal.GET("/metrics", adminHandler.GetMetrics)
}
