package dto

import (
	"time"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// CreateModeratorRequest payload. Skills is comma-separated.
type CreateModeratorRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Skills   string `json:"skills"`
}

// DecideModeratorRequest payload.
type DecideModeratorRequest struct {
	Action string `json:"action"`
}

// ModeratorRequestResponse is the client view of an application.
type ModeratorRequestResponse struct {
	ID          string                        `json:"id"`
	ApplicantID string                        `json:"applicant_id"`
	Username    string                        `json:"username"`
	Email       string                        `json:"email"`
	Skills      []string                      `json:"skills"`
	Status      domain.ModeratorRequestStatus `json:"status"`
	ReviewedBy  *string                       `json:"reviewed_by"`
	RejectedAt  *time.Time                    `json:"rejected_at"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// NewModeratorRequestResponse projects a request; nil stays nil.
func NewModeratorRequestResponse(r *domain.ModeratorRequest) *ModeratorRequestResponse {
	if r == nil {
		return nil
	}
	skills := r.Skills
	if skills == nil {
		skills = []string{}
	}
	return &ModeratorRequestResponse{
		ID:          r.ID,
		ApplicantID: r.ApplicantID,
		Username:    r.Username,
		Email:       r.Email,
		Skills:      skills,
		Status:      r.Status,
		ReviewedBy:  r.ReviewedBy,
		RejectedAt:  r.RejectedAt,
		CreatedAt:   r.CreatedAt,
	}
}
