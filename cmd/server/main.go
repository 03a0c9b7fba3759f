package main

import (
	"fmt"
	"log"
	"net/http"

	"relayd/internal/api"
	"relayd/internal/api/handlers"
	"relayd/internal/api/middleware"
	"relayd/internal/engine/relay"
	"relayd/internal/pkg/logger"
	"relayd/internal/platform/audit"
	"relayd/internal/platform/auth"
	"relayd/internal/platform/config"
	"relayd/internal/platform/database"
	"relayd/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(db)
	engine := relay.NewEngine(deliveryRepo, cfg.Relay.DeliveryTimeout)
	registry := relay.NewRegistry(webhookRepo)
	dispatcher := relay.NewDispatcher(webhookRepo, engine, auditLogger)
	tester := relay.NewTester(registry, engine, cfg.Relay.DeliveryTimeout)
	history := relay.NewHistory(deliveryRepo)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(registry, tester, history)
	relayHandler := handlers.NewRelayHandler(dispatcher)
	auditHandler := handlers.NewAuditHandler(auditLogger)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeyRepo)
	healthHandler := handlers.NewHealthHandler(db)
	metricsHandler := handlers.NewMetricsHandler(deliveryRepo)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	apiKeyMiddleware := middleware.NewAPIKeyMiddleware(apiKeyRepo)

	// Router
	deps := &api.Dependencies{
		WebhookHandler:   webhookHandler,
		RelayHandler:     relayHandler,
		AuditHandler:     auditHandler,
		APIKeyHandler:    apiKeyHandler,
		HealthHandler:    healthHandler,
		MetricsHandler:   metricsHandler,
		AuthMiddleware:   authMiddleware,
		APIKeyMiddleware: apiKeyMiddleware,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
