package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrValidation   = errors.New("validation failed")
)

// Auth and OTP flow errors. Their messages are shown to the client as-is.
var (
	ErrDuplicateEmail     = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrOTPNotFound        = errors.New("no OTP found for this email")
	ErrOTPExpired         = errors.New("OTP expired")
	ErrOTPMismatch        = errors.New("invalid OTP")
	ErrOTPNotVerified     = errors.New("email not verified, please verify the OTP first")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDispatch           = errors.New("failed to send OTP")
)

// ValidationError carries per-field messages keyed by the JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
