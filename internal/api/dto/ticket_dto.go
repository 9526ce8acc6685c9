package dto

import (
	"time"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// TicketResponse is a ticket as returned to clients. Triage fields are empty
// for requesters.
type TicketResponse struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Status        domain.TicketStatus    `json:"status"`
	CreatedBy     string                 `json:"created_by"`
	AssignedTo    *string                `json:"assigned_to"`
	AssigneeEmail *string                `json:"assignee_email,omitempty"`
	Priority      *domain.TicketPriority `json:"priority,omitempty"`
	Deadline      *time.Time             `json:"deadline,omitempty"`
	HelpfulNotes  string                 `json:"helpful_notes,omitempty"`
	RelatedSkills []string               `json:"related_skills"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	CompletedAt   *time.Time             `json:"completed_at"`
}

// CommentResponse represents one conversation entry.
type CommentResponse struct {
	ID             string      `json:"id"`
	AuthorID       string      `json:"author_id"`
	AuthorUsername string      `json:"author_username,omitempty"`
	AuthorEmail    string      `json:"author_email,omitempty"`
	Role           domain.Role `json:"role"`
	Text           string      `json:"text"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewTicketResponse projects a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	skills := t.RelatedSkills
	if skills == nil {
		skills = []string{}
	}
	return TicketResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		CreatedBy:     t.CreatedBy,
		AssignedTo:    t.AssignedTo,
		AssigneeEmail: t.AssigneeEmail,
		Priority:      t.Priority,
		Deadline:      t.Deadline,
		HelpfulNotes:  t.HelpfulNotes,
		RelatedSkills: skills,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

// NewTicketResponses projects a list of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponses projects a conversation.
func NewCommentResponses(comments []domain.TicketComment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentResponse{
			ID:             c.ID,
			AuthorID:       c.AuthorID,
			AuthorUsername: c.AuthorUsername,
			AuthorEmail:    c.AuthorEmail,
			Role:           c.Role,
			Text:           c.Text,
			CreatedAt:      c.CreatedAt,
		})
	}
	return out
}
