// Package otp issues and verifies email one-time passcodes and tracks the
// per-email verified flag that gates the next signup or login.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-todo-auth/internal/domain"
	"github.com/go-todo-auth/internal/infrastructure/metrics"
	"github.com/go-todo-auth/internal/pkg/keylock"
	"github.com/go-todo-auth/internal/pkg/token"
)

// Store persists verification records keyed by (email, type).
// Take must remove and return the record atomically. IncrementAttempts and
// DeleteOTP act on the OTP record only while it still holds code.
type Store interface {
	Put(ctx context.Context, v *domain.Verification) error
	Get(ctx context.Context, email, verType string) (*domain.Verification, error)
	Take(ctx context.Context, email, verType string) (*domain.Verification, error)
	IncrementAttempts(ctx context.Context, email, code string) (int, error)
	DeleteOTP(ctx context.Context, email, code string) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type Service interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
	ConsumeVerified(ctx context.Context, email string) error
}

type ServiceDeps struct {
	Store       Store
	Mailer      mailer
	Metrics     *metrics.Metrics
	TTL         time.Duration
	MaxAttempts int           // 0 allows unlimited retries
	VerifiedTTL time.Duration // 0 keeps the flag until consumed
	Now         func() time.Time
}

type service struct {
	store       Store
	mailer      mailer
	metrics     *metrics.Metrics
	locks       *keylock.Locker
	ttl         time.Duration
	maxAttempts int
	verifiedTTL time.Duration
	now         func() time.Time
	newCode     func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &service{
		store:       deps.Store,
		mailer:      deps.Mailer,
		metrics:     deps.Metrics,
		locks:       keylock.New(),
		ttl:         ttl,
		maxAttempts: deps.MaxAttempts,
		verifiedTTL: deps.VerifiedTTL,
		now:         now,
		newCode:     token.NewOTP,
	}
}

// Send stores a fresh code for email, replacing any earlier one, and mails it.
// If the mail cannot be sent the new record is removed again.
func (s *service) Send(ctx context.Context, email string) error {
	unlock := s.locks.Lock(email)
	defer unlock()

	code, err := s.newCode()
	if err != nil {
		s.metrics.OTPSend("error")
		return err
	}
	v := &domain.Verification{
		Email:     email,
		Type:      domain.VerificationOTP,
		Code:      code,
		ExpiresAt: domain.ExpiryAt(s.now(), s.ttl),
	}
	if err := s.store.Put(ctx, v); err != nil {
		s.metrics.OTPSend("error")
		return fmt.Errorf("store OTP: %w", err)
	}

	body := fmt.Sprintf("Your OTP is: %s. It will expire in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.mailer.SendEmail(email, "Your OTP Verification Code", body); err != nil {
		if delErr := s.store.DeleteOTP(ctx, email, code); delErr != nil {
			slog.Warn("failed to roll back OTP after dispatch failure", "email", email, "err", delErr)
		}
		s.metrics.OTPSend("dispatch_failed")
		return fmt.Errorf("%w: %v", domain.ErrDispatch, err)
	}
	s.metrics.OTPSend("ok")
	return nil
}

// Verify checks code against the stored record. On a match the record is
// consumed and the verified flag is set for email.
func (s *service) Verify(ctx context.Context, email, code string) error {
	unlock := s.locks.Lock(email)
	defer unlock()

	v, err := s.store.Get(ctx, email, domain.VerificationOTP)
	if errors.Is(err, domain.ErrNotFound) {
		s.metrics.OTPVerify("not_found")
		return domain.ErrOTPNotFound
	}
	if err != nil {
		return fmt.Errorf("load OTP: %w", err)
	}
	if v.Expired(s.now()) {
		s.metrics.OTPVerify("expired")
		return domain.ErrOTPExpired
	}

	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) != 1 {
		s.metrics.OTPVerify("mismatch")
		attempts, err := s.store.IncrementAttempts(ctx, email, v.Code)
		if errors.Is(err, domain.ErrNotFound) {
			// Replaced by a newer send; the caller guessed against a stale code.
			return domain.ErrOTPMismatch
		}
		if err != nil {
			return fmt.Errorf("record OTP attempt: %w", err)
		}
		if s.maxAttempts > 0 && attempts >= s.maxAttempts {
			if err := s.store.DeleteOTP(ctx, email, v.Code); err != nil {
				return fmt.Errorf("discard OTP: %w", err)
			}
			slog.Info("OTP discarded after too many failed attempts", "email", email, "attempts", attempts)
		}
		return domain.ErrOTPMismatch
	}

	// Flag first: if its write fails the code is still there to retry with.
	flag := &domain.Verification{Email: email, Type: domain.VerificationVerified}
	if s.verifiedTTL > 0 {
		flag.ExpiresAt = domain.ExpiryAt(s.now(), s.verifiedTTL)
	}
	if err := s.store.Put(ctx, flag); err != nil {
		return fmt.Errorf("set verified flag: %w", err)
	}
	if err := s.store.DeleteOTP(ctx, email, v.Code); err != nil {
		return fmt.Errorf("consume OTP: %w", err)
	}
	s.metrics.OTPVerify("ok")
	return nil
}

// ConsumeVerified clears the verified flag for email, failing with
// domain.ErrOTPNotVerified if it was not set.
func (s *service) ConsumeVerified(ctx context.Context, email string) error {
	unlock := s.locks.Lock(email)
	defer unlock()

	v, err := s.store.Take(ctx, email, domain.VerificationVerified)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrOTPNotVerified
	}
	if err != nil {
		return fmt.Errorf("consume verified flag: %w", err)
	}
	if v.Expired(s.now()) {
		return domain.ErrOTPNotVerified
	}
	return nil
}
