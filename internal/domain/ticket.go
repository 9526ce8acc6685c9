package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusTodo       TicketStatus = "To-Do"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusCompleted  TicketStatus = "Completed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusTodo, TicketStatusInProgress, TicketStatusCompleted:
		return true
	}
	return false
}

// TicketPriority is assigned by the classifier.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Status        TicketStatus    `json:"status"`
	CreatedBy     string          `json:"created_by"`
	AssignedTo    *string         `json:"assigned_to"`
	AssigneeEmail *string         `json:"assignee_email,omitempty"`
	Priority      *TicketPriority `json:"priority"`
	Deadline      *time.Time      `json:"deadline"`
	HelpfulNotes  string          `json:"helpful_notes"`
	RelatedSkills []string        `json:"related_skills"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at"`
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// TicketCounts is the per-status dashboard tally.
type TicketCounts struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// Add folds n tickets of the given status into the tally.
func (c *TicketCounts) Add(status TicketStatus, n int) {
	c.Total += n
	switch status {
	case TicketStatusTodo:
		c.Todo += n
	case TicketStatusInProgress:
		c.InProgress += n
	case TicketStatusCompleted:
		c.Completed += n
	}
}
