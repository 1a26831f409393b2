// Package memory holds process-local stores. State is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-todo-auth/internal/domain"
)

type key struct {
	email   string
	verType string
}

// VerificationStore keeps OTP records and verified flags in a map.
// Expired records are not swept; callers reject them by ExpiresAt and
// they are replaced on the next Put.
type VerificationStore struct {
	mu sync.RWMutex
	m  map[key]domain.Verification
}

func NewVerificationStore() *VerificationStore {
	return &VerificationStore{m: make(map[key]domain.Verification)}
}

func (s *VerificationStore) Put(_ context.Context, v *domain.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key{v.Email, v.Type}] = *v
	return nil
}

func (s *VerificationStore) Get(_ context.Context, email, verType string) (*domain.Verification, error) {
	s.mu.RLock()
	v, ok := s.m[key{email, verType}]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return &v, nil
}

// IncrementAttempts bumps the attempt counter of the OTP record for email if
// it still holds code, and returns the new count.
func (s *VerificationStore) IncrementAttempts(_ context.Context, email, code string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{email, domain.VerificationOTP}
	v, ok := s.m[k]
	if !ok || v.Code != code {
		return 0, fmt.Errorf("otp record replaced or gone: %w", domain.ErrNotFound)
	}
	v.Attempts++
	s.m[k] = v
	return v.Attempts, nil
}

// DeleteOTP removes the OTP record for email only if it still holds code.
// A missing or replaced record is not an error.
func (s *VerificationStore) DeleteOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{email, domain.VerificationOTP}
	if v, ok := s.m[k]; ok && v.Code == code {
		delete(s.m, k)
	}
	return nil
}

// Take removes the record and returns it.
func (s *VerificationStore) Take(_ context.Context, email, verType string) (*domain.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{email, verType}
	v, ok := s.m[k]
	if !ok {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	delete(s.m, k)
	return &v, nil
}

// Len returns the number of stored records.
func (s *VerificationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
