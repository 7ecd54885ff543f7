package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/vin-sipoi/jengahacks-api/internal/handlers"
	"github.com/vin-sipoi/jengahacks-api/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	registrationHandler *handlers.RegistrationHandler,
	captchaHandler *handlers.CaptchaHandler,
	adminHandler *handlers.AdminHandler,
) {
	rateLimitConfig := middleware.DefaultRequestRateLimit()

	// Public routes
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(rateLimitConfig))

		r.Post("/register", registrationHandler.Register)
		r.Post("/verify-captcha", captchaHandler.Verify)

		// Self-service via the access token handed out at registration
		r.Get("/registrations/{token}", registrationHandler.Lookup)
		r.Delete("/registrations/{token}", registrationHandler.Cancel)
	})

	// Admin surface. Authentication is expected to be enforced upstream
	// (network boundary or gateway); these routes carry no credentials
	// themselves.
	router.Route("/admin", func(r chi.Router) {
		r.Get("/stats", adminHandler.GetStats)
		r.Get("/rate-limits", adminHandler.GetRateLimit)

		r.Get("/violations", adminHandler.ListViolations)
		r.Get("/alerts", adminHandler.ListAlerts)
		r.Post("/alerts/{id}/resolve", adminHandler.ResolveAlert)

		r.Get("/patterns", adminHandler.DetectPatterns)
		r.Get("/patterns/history", adminHandler.PatternHistory)

		r.Get("/blocks", adminHandler.ListBlocks)
		r.Post("/blocks", adminHandler.CreateBlock)
		r.Delete("/blocks", adminHandler.DeleteBlock)

		r.Post("/escalate", adminHandler.Escalate)
	})
}
