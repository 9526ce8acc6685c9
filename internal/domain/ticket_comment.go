package domain

import "time"

// TicketComment is one entry of a ticket's conversation.
type TicketComment struct {
	ID             string    `json:"id"`
	TicketID       string    `json:"ticket_id"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username,omitempty"`
	AuthorEmail    string    `json:"author_email,omitempty"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}
