package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-todo-auth/internal/application/auth"
	"github.com/go-todo-auth/internal/application/otp"
	"github.com/go-todo-auth/internal/config"
	"github.com/go-todo-auth/internal/infrastructure/metrics"
	"github.com/go-todo-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-todo-auth/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. Background work started
// here (rate-limiter cleanup) stops when ctx is cancelled.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rps, burst := cfg.RateLimitRPS, cfg.RateLimitBurst
	if rps <= 0 || burst <= 0 {
		rps, burst = 5, 10
	}
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(rps), burst)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:       deps.VerificationRepo,
		Mailer:      deps.Mailer,
		Metrics:     deps.Metrics,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		VerifiedTTL: cfg.VerifiedFlagTTL,
	})
	authSvc, err := auth.NewService(auth.ServiceDeps{
		UserRepo:    deps.UserRepo,
		OTP:         otpSvc,
		Hasher:      deps.Hasher,
		JWTProvider: deps.JWTProvider,
		Metrics:     deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(authSvc)

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)
				r.Post("/send-otp", userH.SendOTP)
				r.Post("/verify-otp", userH.VerifyOTP)
				r.Post("/signup", userH.Signup)
				r.Post("/login", userH.Login)
			})

			r.With(appmiddleware.Auth(deps.JWTProvider)).Get("/me", userH.Me)
		})
	})

	return r, nil
}
