package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-todo-auth/internal/domain"
	"github.com/go-todo-auth/internal/infrastructure/metrics"
	"github.com/go-todo-auth/internal/pkg/id"
	"github.com/go-todo-auth/internal/pkg/validate"
)

// Service is the signup/login flow. Signup and login both require the email
// to have passed OTP verification immediately beforehand.
type Service interface {
	SendOTP(ctx context.Context, req domain.SendOTPRequest) error
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) error
	Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type otpIssuer interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
	ConsumeVerified(ctx context.Context, email string) error
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}

type tokenSigner interface {
	Sign(userID, username string) (string, error)
}

type ServiceDeps struct {
	UserRepo    userStore
	OTP         otpIssuer
	Hasher      passwordHasher
	JWTProvider tokenSigner
	Metrics     *metrics.Metrics
}

type service struct {
	userRepo    userStore
	otp         otpIssuer
	hasher      passwordHasher
	jwtProvider tokenSigner
	metrics     *metrics.Metrics

	// dummyHash is compared against when the email is unknown so that
	// login takes the same time whether or not the account exists.
	dummyHash string
}

func NewService(deps ServiceDeps) (Service, error) {
	dummy, err := deps.Hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &service{
		userRepo:    deps.UserRepo,
		otp:         deps.OTP,
		hasher:      deps.Hasher,
		jwtProvider: deps.JWTProvider,
		metrics:     deps.Metrics,
		dummyHash:   dummy,
	}, nil
}

func (s *service) SendOTP(ctx context.Context, req domain.SendOTPRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrBadRequest)
	}
	return s.otp.Send(ctx, email)
}

func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) error {
	email := normalizeEmail(req.Email)
	code := strings.TrimSpace(req.OTP)
	if email == "" || code == "" {
		return fmt.Errorf("email and otp are required: %w", domain.ErrBadRequest)
	}
	return s.otp.Verify(ctx, email, code)
}

func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(&req); err != nil {
		s.metrics.Auth("signup", "invalid")
		return nil, err
	}
	if err := s.otp.ConsumeVerified(ctx, req.Email); err != nil {
		s.metrics.Auth("signup", "not_verified")
		return nil, err
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		s.metrics.Auth("signup", "duplicate")
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			s.metrics.Auth("signup", "duplicate")
		}
		return nil, err
	}

	token, err := s.jwtProvider.Sign(u.UserID, u.Name)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.metrics.Auth("signup", "ok")
	slog.Info("user signed up", "user_id", u.UserID)
	return &domain.AuthResult{Token: token, User: u}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		s.metrics.Auth("login", "invalid")
		return nil, err
	}
	if err := s.otp.ConsumeVerified(ctx, req.Email); err != nil {
		s.metrics.Auth("login", "not_verified")
		return nil, err
	}

	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		_, _ = s.hasher.Verify(req.Password, s.dummyHash)
		s.metrics.Auth("login", "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(req.Password, u.PasswordHash)
	if err != nil {
		slog.Warn("stored password hash unusable", "user_id", u.UserID, "err", err)
	}
	if !ok {
		s.metrics.Auth("login", "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.jwtProvider.Sign(u.UserID, u.Name)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	s.metrics.Auth("login", "ok")
	return &domain.AuthResult{Token: token, User: u}, nil
}

func (s *service) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.Get(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
