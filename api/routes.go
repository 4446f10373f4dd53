package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/procurehq/rfpstack/api/handlers"
	"github.com/procurehq/rfpstack/api/middleware"
	"github.com/procurehq/rfpstack/internal/config"
	"github.com/procurehq/rfpstack/internal/logger"
	"github.com/procurehq/rfpstack/internal/repository"
	"github.com/procurehq/rfpstack/internal/tracing"
	"github.com/procurehq/rfpstack/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, cfg *config.Config, log logger.Logger, s *services.Services, repos *repository.Repositories) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	webhookHandler := handlers.NewWebhookHandler(log, s.Orchestrator)
	watchHandler := handlers.NewWatchHandler(log, s.GmailService, repos.WatchStateRepository, cfg.GmailConfig.UserEmail)
	rfpHandler := handlers.NewRFPHandler(log, s.ExtractionService, repos.RFPRepository)

	r.GET("/health", handlers.HealthCheck)

	// The push endpoint carries no API key; the broker authenticates at the
	// transport level and the handler acknowledges everything.
	webhooks := r.Group("/webhook")
	webhooks.Use(middleware.TracingMiddleware())
	{
		webhooks.POST("/gmail", webhookHandler.GmailNotification())
	}

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-RFPSTACK-API-KEY",
		ValidAPIKey: cfg.AppConfig.APIKey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.TracingMiddleware())
	{
		watch := api.Group("/watch")
		{
			watch.POST("", watchHandler.Establish())
			watch.GET("", watchHandler.Status())
		}

		rfps := api.Group("/rfps")
		{
			rfps.POST("/extract", rfpHandler.Extract())
		}

		ingest := api.Group("/ingest")
		{
			ingest.POST("/sweep", webhookHandler.Sweep())
		}
	}
}
