package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tbarroso/cerbero/internal/auth"
	"github.com/tbarroso/cerbero/internal/handlers"
	"github.com/tbarroso/cerbero/internal/middleware"
)

// RegisterRoutes registers all application routes under /api.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	captchaHandler *handlers.CaptchaHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
) {
	// Rate limiting config for credential endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/verify-2fa", authHandler.VerifyTwoFactor)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/captcha/verify", captchaHandler.Verify)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/users/register", userHandler.Register)
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - full access token required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))

		r.Get("/users/attempts", userHandler.ListAttempts)
	})
}
