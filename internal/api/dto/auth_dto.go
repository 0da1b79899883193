package dto

import "time"

// SignupRequest payload for new identities.
type SignupRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=20"`
	Email    string   `json:"email" validate:"required,email,max=50"`
	Password string   `json:"password" validate:"required,min=6,max=40"`
	Roles    []string `json:"roles"`
}

// SigninRequest payload for sign-in.
type SigninRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SigninResponse carries the issued bearer token and the identity it names.
type SigninResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityResponse describes the authenticated caller.
type IdentityResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// MessageResponse wraps a plain message.
type MessageResponse struct {
	Message string `json:"message"`
}
