package http

import (
	"context"

	"github.com/go-todo-auth/internal/domain"
	jwtinfra "github.com/go-todo-auth/internal/infrastructure/jwt"
	"github.com/go-todo-auth/internal/infrastructure/metrics"
	"github.com/go-todo-auth/internal/infrastructure/smtp"
	"github.com/go-todo-auth/internal/pkg/password"
	"github.com/prometheus/client_golang/prometheus"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// VerificationStore is the minimal interface the router requires from an OTP state store.
// Take must remove and return the record atomically.
type VerificationStore interface {
	Put(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, email, verType string) (*domain.Verification, error)
	Take(ctx context.Context, email, verType string) (*domain.Verification, error)
	IncrementAttempts(ctx context.Context, email, code string) (int, error)
	DeleteOTP(ctx context.Context, email, code string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo         UserRepository
	VerificationRepo VerificationStore
	Mailer           smtp.Mailer
	Hasher           *password.Hasher
	JWTProvider      *jwtinfra.Provider
	Registry         *prometheus.Registry
	Metrics          *metrics.Metrics
}
