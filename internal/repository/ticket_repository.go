package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-assistant/internal/domain"
)

// TicketFilter captures list parameters. CreatedBy scopes the result to one
// requester; nil lists every ticket.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Statuses   []domain.TicketStatus
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	TransitionStatus(ctx context.Context, id string, from, to domain.TicketStatus, completedAt *time.Time) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Assign(ctx context.Context, ticketID, assigneeID string) error
	CountActiveByAssignee(ctx context.Context, assigneeID string) (int, error)
	CountByStatus(ctx context.Context, createdBy *string) (domain.TicketCounts, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.title, t.description, t.status, t.created_by, t.assigned_to, a.email,
        t.priority, t.deadline, t.helpful_notes, t.related_skills, t.created_at, t.updated_at, t.completed_at`

const ticketFrom = ` FROM tickets t LEFT JOIN users a ON a.id = t.assigned_to`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, created_by, related_skills)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.CreatedBy,
		nonNilStrings(ticket.RelatedSkills),
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, assigned_to=$4, priority=$5, deadline=$6,
            helpful_notes=$7, related_skills=$8, completed_at=$9, updated_at=NOW()
        WHERE id=$10
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.AssignedTo,
		ticket.Priority,
		ticket.Deadline,
		ticket.HelpfulNotes,
		nonNilStrings(ticket.RelatedSkills),
		ticket.CompletedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

// TransitionStatus moves the ticket from one status to another and reports
// whether it did. A ticket whose status is no longer from is left untouched.
func (r *ticketRepository) TransitionStatus(ctx context.Context, id string, from, to domain.TicketStatus, completedAt *time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status=$1, completed_at=$2, updated_at=NOW()
        WHERE id=$3 AND status=$4`
	cmd, err := r.pool.Exec(ctx, query, to, completedAt, id, from)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+ticketFrom+` WHERE t.id=$1`, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s%s WHERE %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, ticketFrom, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Assign(ctx context.Context, ticketID, assigneeID string) error {
	return execOne(ctx, r.pool, `UPDATE tickets SET assigned_to=$1, updated_at=NOW() WHERE id=$2`, assigneeID, ticketID)
}

// CountActiveByAssignee counts the assignee's tickets that are not Completed.
func (r *ticketRepository) CountActiveByAssignee(ctx context.Context, assigneeID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tickets WHERE assigned_to=$1 AND status <> $2`,
		assigneeID, domain.TicketStatusCompleted,
	).Scan(&n)
	return n, err
}

func (r *ticketRepository) CountByStatus(ctx context.Context, createdBy *string) (domain.TicketCounts, error) {
	query := `SELECT status, COUNT(*) FROM tickets`
	args := []any{}
	if createdBy != nil {
		query += ` WHERE created_by=$1`
		args = append(args, *createdBy)
	}
	query += ` GROUP BY status`

	var counts domain.TicketCounts
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.TicketStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, err
		}
		counts.Add(status, n)
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.AssigneeEmail,
		&ticket.Priority,
		&ticket.Deadline,
		&ticket.HelpfulNotes,
		&ticket.RelatedSkills,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
