// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role"     validate:"omitempty,oneof=user manager USER MANAGER"`
}

type ResyncRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResponse mirrors the three guard outcomes. On failure the client
// gets the attempt counter so it can show how many tries remain.
type LoginResponse struct {
	Success           bool       `json:"success"`
	Locked            bool       `json:"locked"`
	FailedAttempts    int        `json:"failed_attempts"`
	RemainingAttempts int        `json:"remaining_attempts"`
	Token             string     `json:"token,omitempty"`
	TokenType         string     `json:"token_type,omitempty"`
	Role              string     `json:"role,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Message           string     `json:"message,omitempty"`
}

type ValidateResponse struct {
	Valid     bool      `json:"valid"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ManagerExistsResponse struct {
	Exists bool `json:"exists"`
}
