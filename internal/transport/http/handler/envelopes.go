package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-todo-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper. Errors is only set for
// field validation failures.
type MessageEnvelope struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// AuthEnvelope wraps signup/login responses.
type AuthEnvelope struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// UserEnvelope is the public view of a user.
type UserEnvelope struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func toUserEnvelope(u *domain.User) UserEnvelope {
	return UserEnvelope{ID: u.UserID, Name: u.Name, Email: u.Email}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg})
}
