package dto

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// LoginRequest payload for POST /auth/login.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        int64       `json:"id"`
	FullName  string      `json:"full_name"`
	Phone     string      `json:"phone"`
	Login     string      `json:"login"`
	Role      domain.Role `json:"role"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserResponse maps a user without its password hash.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Phone:     domain.FormatPhone(u.Phone),
		Login:     u.Login,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}
