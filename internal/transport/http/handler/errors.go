package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-todo-auth/internal/domain"
)

// httpError maps a service error to a status code and client-facing message.
// Anything unrecognised is treated as a store failure and not leaked.
func httpError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, strings.TrimSuffix(err.Error(), ": "+domain.ErrBadRequest.Error())
	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrOTPNotFound),
		errors.Is(err, domain.ErrOTPExpired),
		errors.Is(err, domain.ErrOTPMismatch),
		errors.Is(err, domain.ErrOTPNotVerified):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrDispatch):
		slog.Error("otp dispatch failed", "err", err)
		return http.StatusInternalServerError, "Failed to send OTP"
	default:
		slog.Error("request failed", "err", err)
		return http.StatusInternalServerError, "server error"
	}
}

// flowMessages are the client-facing texts for the 400-class flow errors.
var flowMessages = []struct {
	err error
	msg string
}{
	{domain.ErrDuplicateEmail, "Email already registered"},
	{domain.ErrOTPNotFound, "No OTP found for this email"},
	{domain.ErrOTPExpired, "OTP expired"},
	{domain.ErrOTPMismatch, "Invalid OTP"},
	{domain.ErrOTPNotVerified, "Email not verified. Please verify the OTP first"},
}

func rootMessage(err error) string {
	for _, f := range flowMessages {
		if errors.Is(err, f.err) {
			return f.msg
		}
	}
	return err.Error()
}

func respondError(w http.ResponseWriter, err error) {
	status, msg := httpError(err)
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, status, MessageEnvelope{Message: msg, Errors: ve.Fields})
		return
	}
	writeError(w, status, msg)
}
