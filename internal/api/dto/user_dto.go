package dto

import (
	"time"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// SignupRequest payload for new accounts.
type SignupRequest struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Skills   []string `json:"skills"`
}

// LoginRequest payload. Identifier is an email or a username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

// UpdateUserRequest is the admin edit payload.
type UpdateUserRequest struct {
	Email  string      `json:"email"`
	Skills []string    `json:"skills"`
	Role   domain.Role `json:"role"`
}

// PresenceRequest payload.
type PresenceRequest struct {
	Status domain.Presence `json:"status"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID                         string          `json:"id"`
	Username                   string          `json:"username"`
	Email                      string          `json:"email"`
	Role                       domain.Role     `json:"role"`
	Skills                     []string        `json:"skills"`
	Presence                   domain.Presence `json:"presence"`
	LastSeen                   *time.Time      `json:"last_seen"`
	TotalTicketsResolved       int             `json:"total_tickets_resolved"`
	AverageResolutionTimeHours float64         `json:"average_resolution_time_hours"`
	CreatedAt                  time.Time       `json:"created_at"`
}

// NewUserResponse projects a user.
func NewUserResponse(u *domain.User) UserResponse {
	skills := u.Skills
	if skills == nil {
		skills = []string{}
	}
	return UserResponse{
		ID:                         u.ID,
		Username:                   u.Username,
		Email:                      u.Email,
		Role:                       u.Role,
		Skills:                     skills,
		Presence:                   u.Presence,
		LastSeen:                   u.LastSeen,
		TotalTicketsResolved:       u.TotalTicketsResolved,
		AverageResolutionTimeHours: u.AverageResolutionTimeHours,
		CreatedAt:                  u.CreatedAt,
	}
}
