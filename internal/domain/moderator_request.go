package domain

import "time"

// ModeratorRequestStatus tracks an application through review.
type ModeratorRequestStatus string

const (
	ModeratorRequestPending  ModeratorRequestStatus = "pending"
	ModeratorRequestAccepted ModeratorRequestStatus = "accepted"
	ModeratorRequestRejected ModeratorRequestStatus = "rejected"
)

// ModeratorRequest is an application by a user to become a moderator.
type ModeratorRequest struct {
	ID          string                 `json:"id"`
	ApplicantID string                 `json:"applicant_id"`
	Username    string                 `json:"username"`
	Email       string                 `json:"email"`
	Skills      []string               `json:"skills"`
	Status      ModeratorRequestStatus `json:"status"`
	ReviewedBy  *string                `json:"reviewed_by"`
	RejectedAt  *time.Time             `json:"rejected_at"`
	CreatedAt   time.Time              `json:"created_at"`
}
