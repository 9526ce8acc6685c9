package events

import (
	"time"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserSignup          EventType = "user_signup"
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
)

// Actor identifies who caused an event. Empty for system actions.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserSignupPayload payload.
type UserSignupPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title     string `json:"title"`
	CreatedBy string `json:"created_by"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload. Fallback is set when no candidate scored and
// the ticket went to an admin.
type TicketAssignedPayload struct {
	AssigneeID    string                 `json:"assignee_id"`
	AssigneeEmail string                 `json:"assignee_email"`
	Title         string                 `json:"title"`
	Priority      *domain.TicketPriority `json:"priority,omitempty"`
	Fallback      bool                   `json:"fallback"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string      `json:"comment_id"`
	AuthorRole  domain.Role `json:"author_role"`
	BodyPreview string      `json:"body_preview"`
}
