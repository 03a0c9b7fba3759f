package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "relayd/internal/api/context"
	"relayd/internal/api/handlers"
	"relayd/internal/api/middleware"
	"relayd/internal/pkg/errors"
	"relayd/internal/platform/auth"
)

type Dependencies struct {
	WebhookHandler   *handlers.WebhookHandler
	RelayHandler     *handlers.RelayHandler
	AuditHandler     *handlers.AuditHandler
	APIKeyHandler    *handlers.APIKeyHandler
	HealthHandler    *handlers.HealthHandler
	MetricsHandler   *handlers.MetricsHandler
	AuthMiddleware   *middleware.AuthMiddleware
	APIKeyMiddleware *middleware.APIKeyMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	authMid := deps.AuthMiddleware
	keyMid := deps.APIKeyMiddleware

	// Webhook management
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_write")))
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid.Handle, middleware.RateLimit("api_read")))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid.Handle, middleware.RateLimit("api_read")))
	router.PATCH("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Update, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_write")))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Delete, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_write")))
	router.POST("/api/v1/webhooks/:webhook_id/rotate",
		chain(deps.WebhookHandler.RotateSecret, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_write")))

	// Test deliveries
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(deps.WebhookHandler.Test, authMid.Handle, middleware.RateLimit("api_write")))
	router.POST("/api/v1/webhook-tests",
		chain(deps.WebhookHandler.TestURL, authMid.Handle, middleware.RateLimit("api_write")))

	// Delivery history
	router.GET("/api/v1/webhooks/:webhook_id/deliveries",
		chain(deps.WebhookHandler.ListDeliveries, authMid.Handle, middleware.RateLimit("api_read")))
	router.GET("/api/v1/deliveries/chains/:chain_id",
		chain(deps.WebhookHandler.GetChain, authMid.Handle, middleware.RateLimit("api_read")))

	// Relay trigger (event producers, API-key authenticated)
	router.POST("/api/v1/relay",
		chain(deps.RelayHandler.Trigger, keyMid.Handle, middleware.RateLimit("relay")))
	router.GET("/api/v1/relay/events",
		chain(deps.RelayHandler.ListEvents, authMid.Handle, middleware.RateLimit("api_read")))
	router.GET("/api/v1/relay/audit",
		chain(deps.AuditHandler.List, authMid.Handle, middleware.RateLimit("api_read")))

	// API key management
	router.POST("/api/v1/api-keys",
		chain(deps.APIKeyHandler.Create, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_write")))
	router.GET("/api/v1/api-keys",
		chain(deps.APIKeyHandler.List, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_read")))
	router.DELETE("/api/v1/api-keys/:key_id",
		chain(deps.APIKeyHandler.Revoke, authMid.Handle, requireRole("admin", "owner"), middleware.RateLimit("api_write")))

	// Operational endpoints
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

			allowed := false
			for _, role := range roles {
				if claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
