package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// Mailer delivers plain-text mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, text string) error
}

// CompletionRecorder folds a resolved ticket into its assignee's statistics.
type CompletionRecorder interface {
	RecordCompletion(ctx context.Context, candidateID string, createdAt, completedAt time.Time)
}

const defaultPageSize = 20

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	completion CompletionRecorder
	cache      *cache.Cache
	ttl        cache.TTLPolicy
	dispatcher events.Dispatcher
	mailer     Mailer
	logger     *zap.Logger
	pageSize   int
	now        func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	Completion  CompletionRecorder
	Cache       *cache.Cache
	TTL         cache.TTLPolicy
	Dispatcher  events.Dispatcher
	Mailer      Mailer
	Logger      *zap.Logger
	PageSize    int
}

// TicketStats is the personal dashboard of a caller.
type TicketStats struct {
	Counts             domain.TicketCounts `json:"counts"`
	OpenAssigned       int                 `json:"open_assigned"`
	TotalResolved      int                 `json:"total_resolved"`
	AvgResolutionHours float64             `json:"avg_resolution_hours"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		completion: deps.Completion,
		cache:      deps.Cache,
		ttl:        deps.TTL,
		dispatcher: deps.Dispatcher,
		mailer:     deps.Mailer,
		logger:     logger,
		pageSize:   pageSize,
		now:        time.Now,
	}
}

// CreateTicket stores a new To-Do ticket and starts its analysis.
func (s *TicketService) CreateTicket(ctx context.Context, user *domain.User, title, description string) (*domain.Ticket, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusTodo,
		CreatedBy:   user.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateTickets(ctx)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    actorOf(user),
		Payload: events.TicketCreatedPayload{
			Title:     ticket.Title,
			CreatedBy: user.ID,
		},
	})
	return ticket, nil
}

// ListTickets returns one page of tickets: all of them for staff, the
// caller's own for users. An empty status lists every status.
func (s *TicketService) ListTickets(ctx context.Context, principal *domain.User, status domain.TicketStatus, page int) ([]domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if status != "" && !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	if page < 1 {
		page = 1
	}

	key := cache.TicketListKey(string(principal.Role), principal.ID, string(status), page)
	tickets, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.RecentTickets,
		func(ctx context.Context) ([]domain.Ticket, error) {
			filter := repository.TicketFilter{Limit: s.pageSize, Offset: (page - 1) * s.pageSize}
			if !principal.Role.IsStaff() {
				filter.CreatedBy = &principal.ID
			}
			if status != "" {
				filter.Statuses = []domain.TicketStatus{status}
			}
			list, err := s.tickets.List(ctx, filter)
			if err != nil {
				return nil, err
			}
			if !principal.Role.IsStaff() {
				for i := range list {
					list[i] = requesterView(list[i])
				}
			}
			return list, nil
		})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// RecentTickets returns the newest tickets across all requesters. Staff only.
func (s *TicketService) RecentTickets(ctx context.Context, principal *domain.User, limit int) ([]domain.Ticket, error) {
	if principal == nil || !principal.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	tickets, err := cache.GetOrCompute(ctx, s.cache, cache.RecentTicketsKey(limit), s.ttl.RecentTickets,
		func(ctx context.Context) ([]domain.Ticket, error) {
			return s.tickets.List(ctx, repository.TicketFilter{Limit: limit})
		})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// GetTicket returns a ticket visible to the caller.
func (s *TicketService) GetTicket(ctx context.Context, principal *domain.User, ticketID string) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	key := cache.TicketDetailKey(ticketID, string(principal.Role), principal.ID)
	ticket, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.RecentTickets,
		func(ctx context.Context) (*domain.Ticket, error) {
			ticket, err := s.loadVisible(ctx, principal, ticketID)
			if err != nil {
				return nil, err
			}
			if !principal.Role.IsStaff() {
				view := requesterView(*ticket)
				return &view, nil
			}
			return ticket, nil
		})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// AddComment appends to a ticket's conversation. Only an admin or the
// assigned moderator may open the conversation; afterwards the requester may
// reply as well.
func (s *TicketService) AddComment(ctx context.Context, principal *domain.User, ticketID, text string) ([]domain.TicketComment, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("text is required", nil)
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	existing, err := s.comments.CountByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !canComment(principal, ticket, existing == 0) {
		if existing == 0 {
			return nil, apperrors.NewForbidden("not allowed to initiate comment")
		}
		return nil, apperrors.NewForbidden("not allowed to comment")
	}

	comment := &domain.TicketComment{
		TicketID: ticket.ID,
		AuthorID: principal.ID,
		Role:     principal.Role,
		Text:     text,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.cache.InvalidateResource(ctx, cache.ResourceTickets)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorRole:  principal.Role,
			BodyPreview: preview(text, 140),
		},
	})
	s.notifyComment(ctx, principal, ticket, text)

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// ListComments returns the conversation of a ticket visible to the caller.
func (s *TicketService) ListComments(ctx context.Context, principal *domain.User, ticketID string) ([]domain.TicketComment, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if _, err := s.loadVisible(ctx, principal, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if comments == nil {
		comments = []domain.TicketComment{}
	}
	return comments, nil
}

// UpdateStatus moves a ticket to status. Admins and the assigned moderator may
// do so. Entering Completed stamps completed_at and records the resolution
// for the assignee exactly once.
func (s *TicketService) UpdateStatus(ctx context.Context, principal *domain.User, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if principal == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	if principal.Role != domain.RoleAdmin && !(principal.Role == domain.RoleModerator && ticket.IsAssignedTo(principal.ID)) {
		return nil, apperrors.NewForbidden("only an admin or the assigned moderator can change status")
	}
	if ticket.Status == status {
		return ticket, nil
	}

	old := ticket.Status
	ticket.Status = status
	completing := status == domain.TicketStatusCompleted
	if completing {
		now := s.now().UTC()
		ticket.CompletedAt = &now
	} else {
		ticket.CompletedAt = nil
	}
	changed, err := s.tickets.TransitionStatus(ctx, ticket.ID, old, status, ticket.CompletedAt)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !changed {
		// another request moved the ticket first; only its writer records stats
		current, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return nil, notFoundOr(err, "ticket", ticketID)
		}
		if current.Status == status {
			return current, nil
		}
		return nil, apperrors.NewConflict("ticket status changed concurrently", map[string]any{"status": current.Status})
	}

	if completing && ticket.AssignedTo != nil && s.completion != nil {
		s.completion.RecordCompletion(ctx, *ticket.AssignedTo, ticket.CreatedAt, *ticket.CompletedAt)
	}
	s.invalidateTickets(ctx)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    actorOf(principal),
		Payload:  events.TicketStatusChangedPayload{OldStatus: old, NewStatus: status},
	})
	return ticket, nil
}

// Counts returns per-status totals: all tickets for staff, own for users.
func (s *TicketService) Counts(ctx context.Context, principal *domain.User) (domain.TicketCounts, error) {
	if principal == nil {
		return domain.TicketCounts{}, apperrors.NewUnauthorized("authentication required")
	}
	key := cache.TicketCountsKey(principal.ID, string(principal.Role))
	counts, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.TicketCounts,
		func(ctx context.Context) (domain.TicketCounts, error) {
			return s.tickets.CountByStatus(ctx, s.scopeFor(principal))
		})
	if err != nil {
		return domain.TicketCounts{}, apperrors.MapError(err)
	}
	return counts, nil
}

// Stats returns the caller's dashboard, including resolution statistics for staff.
func (s *TicketService) Stats(ctx context.Context, principal *domain.User) (TicketStats, error) {
	if principal == nil {
		return TicketStats{}, apperrors.NewUnauthorized("authentication required")
	}
	key := cache.TicketStatsKey(principal.ID, string(principal.Role))
	stats, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.TicketStats,
		func(ctx context.Context) (TicketStats, error) {
			var stats TicketStats
			counts, err := s.tickets.CountByStatus(ctx, s.scopeFor(principal))
			if err != nil {
				return stats, err
			}
			stats.Counts = counts
			if !principal.Role.IsStaff() {
				return stats, nil
			}
			if stats.OpenAssigned, err = s.tickets.CountActiveByAssignee(ctx, principal.ID); err != nil {
				return stats, err
			}
			user, err := s.users.GetByID(ctx, principal.ID)
			if err != nil {
				return stats, err
			}
			stats.TotalResolved = user.TotalTicketsResolved
			stats.AvgResolutionHours = user.AverageResolutionTimeHours
			return stats, nil
		})
	if err != nil {
		return TicketStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

func (s *TicketService) scopeFor(principal *domain.User) *string {
	if principal.Role.IsStaff() {
		return nil
	}
	return &principal.ID
}

func (s *TicketService) loadVisible(ctx context.Context, principal *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, notFoundOr(err, "ticket", ticketID)
	}
	if !principal.Role.IsStaff() && ticket.CreatedBy != principal.ID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func (s *TicketService) notifyComment(ctx context.Context, author *domain.User, ticket *domain.Ticket, text string) {
	if s.mailer == nil {
		return
	}
	name := ticket.Title
	if name == "" {
		name = ticket.ID
	}
	body := fmt.Sprintf("A new comment has been added on your ticket (%s).\n\nComment: %s", name, text)

	var recipients []string
	subject := "New Comment on Your Ticket"
	switch {
	case author.Role.IsStaff():
		owner, err := s.users.GetByID(ctx, ticket.CreatedBy)
		if err != nil {
			s.logger.Warn("comment notification: load requester", zap.String("ticket_id", ticket.ID), zap.Error(err))
			return
		}
		recipients = append(recipients, owner.Email)
	case ticket.AssigneeEmail != nil && *ticket.AssigneeEmail != "":
		subject = "New Comment on Assigned Ticket"
		recipients = append(recipients, *ticket.AssigneeEmail)
	default:
		subject = "New Comment on Ticket"
		admins, err := s.users.ListByRoles(ctx, domain.RoleAdmin)
		if err != nil {
			s.logger.Warn("comment notification: load admins", zap.String("ticket_id", ticket.ID), zap.Error(err))
			return
		}
		for _, admin := range admins {
			recipients = append(recipients, admin.Email)
		}
	}

	for _, to := range recipients {
		if to == "" {
			continue
		}
		if err := s.mailer.Send(ctx, to, subject, body); err != nil {
			s.logger.Warn("comment notification failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
}

// invalidateTickets drops every view derived from ticket rows.
func (s *TicketService) invalidateTickets(ctx context.Context) {
	s.cache.InvalidateResource(ctx, cache.ResourceTickets)
	s.cache.InvalidateResource(ctx, cache.ResourceCounts)
	s.cache.InvalidateResource(ctx, cache.ResourceStats)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func canComment(user *domain.User, ticket *domain.Ticket, first bool) bool {
	if user.Role == domain.RoleAdmin {
		return true
	}
	if user.Role == domain.RoleModerator && ticket.IsAssignedTo(user.ID) {
		return true
	}
	return !first && user.Role == domain.RoleUser && ticket.CreatedBy == user.ID
}

// requesterView hides triage details from the ticket's requester.
func requesterView(t domain.Ticket) domain.Ticket {
	t.HelpfulNotes = ""
	t.Priority = nil
	t.Deadline = nil
	return t
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{UserID: user.ID, Role: user.Role}
}

func notFoundOr(err error, resource, id string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}

func preview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "…"
}
