/**
 * @description
 * This file sets up the HTTP router for the relay. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the middleware stack.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/app"
)

// RouterConfig carries the per-route middleware settings.
type RouterConfig struct {
	RateLimiter     *app.RedisRateLimiter
	RateLimit       int
	RateLimitWindow time.Duration
	InternalAPIKey  string
}

// RelayRoutes creates and returns the router for the relay service.
func RelayRoutes(h *RelayHandlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(CORSMiddleware)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Public endpoints share one per-IP rate limit window.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateLimiter, "public", cfg.RateLimit, cfg.RateLimitWindow))

		r.Post("/requestinvoicetonumber", h.RequestInvoiceHandler)
		r.Post("/claim", h.ClaimHandler)
	})

	// Operator routes sit behind the internal API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))

		r.Get("/admin/claims/indeterminate", h.IndeterminateClaimsHandler)
	})

	return r
}
