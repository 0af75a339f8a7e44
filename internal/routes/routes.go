package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/tripook/tripook-backend/internal/handlers"
	"github.com/tripook/tripook-backend/internal/middleware"
)

// Deps carries the wired handlers and middleware for route registration.
type Deps struct {
	Auth      *handlers.AuthHandler
	Provider  *handlers.ProviderHandler
	Admin     *handlers.AdminHandler
	LoginFeed *handlers.LoginFeedHandler

	Authn        *middleware.Authenticator
	LoginLimiter *middleware.LoginLimiter
}

func SetupRoutes(r *chi.Mux, d Deps) {
	// Public auth routes
	r.Group(func(r chi.Router) {
		if d.LoginLimiter != nil {
			r.Use(d.LoginLimiter.Middleware)
		}
		r.Post("/api/auth/register", d.Auth.Register)
		r.Post("/api/auth/login", d.Auth.Login)
	})
	r.Post("/api/auth/forgot-password", d.Auth.ForgotPassword)
	r.Post("/api/auth/reset-password", d.Auth.ResetPassword)
	r.Get("/api/auth/verify-email", d.Auth.VerifyEmail)
	r.Post("/api/auth/verify-email", d.Auth.VerifyEmail)
	r.Get("/api/auth/check-email", d.Auth.CheckEmail)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(d.Authn.RequireAuth)
		r.Get("/api/auth/profile", d.Auth.Profile)
		r.Post("/api/auth/send-verification", d.Auth.SendVerification)

		r.Post("/api/provider/become-provider", d.Provider.BecomeProvider)
		r.Get("/api/provider/profile", d.Provider.Profile)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(d.Authn.RequireAuth)
		r.Use(d.Authn.RequireAdmin)
		r.Get("/api/admin/providers/pending", d.Admin.PendingProviders)
		r.Put("/api/admin/providers/{id}/decide", d.Admin.DecideProvider)
		r.Put("/api/admin/users/{id}/block", d.Admin.BlockUser)
		r.Put("/api/admin/users/{id}/unblock", d.Admin.UnblockUser)
		r.Delete("/api/admin/users/{id}", d.Admin.DeleteUser)
		r.Get("/api/admin/login-activity/stats", d.Admin.LoginStats)
		r.Get("/api/admin/login-activity/users/{id}", d.Admin.UserLoginHistory)
	})

	// Admin live login feed (authenticates inside the handler; WebSocket
	// clients cannot always send an Authorization header)
	r.Get("/ws/admin/logins", d.LoginFeed.Stream)
}
