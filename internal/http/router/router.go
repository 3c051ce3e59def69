package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"auth-core-service/internal/http/handler"
	"auth-core-service/internal/http/middleware"
	"auth-core-service/internal/http/response"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	LegacyAuthHandler *handler.LegacyAuthHandler
	SessionResolver   middleware.SessionResolver
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	EnableOTelHTTP    bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute, "api").Middleware())

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute, "auth").Middleware()
	sessionAuth := middleware.SessionMiddleware(dep.SessionResolver)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/security/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/token/presign", dep.AuthHandler.Presign)
			r.With(authLimiter).Post("/token/refresh", dep.AuthHandler.Refresh)
			r.With(authLimiter).Post("/login", dep.AuthHandler.LoginByPassword)
			r.With(authLimiter).Post("/otp/login", dep.AuthHandler.LoginByOTP)
			r.With(authLimiter).Post("/otp/send", dep.AuthHandler.SendLoginOTP)
			r.With(authLimiter).Post("/otp/register/send", dep.AuthHandler.SendRegisterOTP)
			r.With(authLimiter).Post("/otp/register/complete", dep.AuthHandler.RegisterByOTP)
			r.With(authLimiter).Post("/verification/email/start", dep.AuthHandler.StartEmailVerification)
			r.With(authLimiter).Post("/verification/email/complete", dep.AuthHandler.CompleteEmailVerification)
			r.Group(func(r chi.Router) {
				r.Use(sessionAuth)
				r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
				r.Post("/logout", dep.AuthHandler.Logout)
				r.Put("/fcm-token", dep.AuthHandler.SetFCMToken)
				r.Get("/session", dep.AuthHandler.Session)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(authLimiter).Post("/login", dep.LegacyAuthHandler.LoginByPassword)
			r.With(authLimiter).Post("/otp", dep.LegacyAuthHandler.LoginByOTP)
			r.With(authLimiter).Post("/refresh", dep.LegacyAuthHandler.Refresh)
			r.Post("/logout", dep.LegacyAuthHandler.Logout)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
