package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/integrations/llm"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// ErrTicketGone marks an analysis job whose ticket no longer exists. Retrying
// it cannot succeed.
var ErrTicketGone = errors.New("ticket not found")

// Classifier analyzes a ticket. A nil analysis means none is available.
type Classifier interface {
	Analyze(ctx context.Context, title, description string) (*llm.Analysis, error)
}

// TicketAssigner selects and persists an assignee for a ticket.
type TicketAssigner interface {
	AssignTicket(ctx context.Context, ticket *domain.Ticket, requiredSkills []string) (*domain.User, bool, error)
}

// TicketAnalysisService runs the triage pipeline of a newly created ticket:
// classification, then assignment, then the assignee's notification.
type TicketAnalysisService struct {
	tickets    repository.TicketRepository
	classifier Classifier
	assigner   TicketAssigner
	cache      *cache.Cache
	mailer     Mailer
	logger     *zap.Logger
}

// TicketAnalysisDependencies bundles collaborators.
type TicketAnalysisDependencies struct {
	TicketRepo repository.TicketRepository
	Classifier Classifier
	Assigner   TicketAssigner
	Cache      *cache.Cache
	Mailer     Mailer
	Logger     *zap.Logger
}

// NewTicketAnalysisService builds the service.
func NewTicketAnalysisService(deps TicketAnalysisDependencies) *TicketAnalysisService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketAnalysisService{
		tickets:    deps.TicketRepo,
		classifier: deps.Classifier,
		assigner:   deps.Assigner,
		cache:      deps.Cache,
		mailer:     deps.Mailer,
		logger:     logger,
	}
}

// Process triages one ticket. Errors other than ErrTicketGone are worth retrying.
func (s *TicketAnalysisService) Process(ctx context.Context, ticketID string) error {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrTicketGone, ticketID)
		}
		return fmt.Errorf("load ticket: %w", err)
	}

	if ticket.Status != domain.TicketStatusTodo {
		ticket.Status = domain.TicketStatusTodo
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return fmt.Errorf("reset status: %w", err)
		}
	}

	var skills []string
	if analysis := s.analyze(ctx, ticket); analysis != nil {
		ApplyAnalysis(ticket, analysis)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return fmt.Errorf("store analysis: %w", err)
		}
		skills = ticket.RelatedSkills
	}
	s.cache.InvalidateResource(ctx, cache.ResourceTickets)
	s.cache.InvalidateResource(ctx, cache.ResourceCounts)
	s.cache.InvalidateResource(ctx, cache.ResourceStats)

	assignee, fallback, err := s.assigner.AssignTicket(ctx, ticket, skills)
	if errors.Is(err, ErrNoAssignee) {
		s.logger.Warn("ticket left unassigned", zap.String("ticket_id", ticket.ID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("assign ticket: %w", err)
	}

	s.notifyAssignee(ctx, assignee, ticket)
	s.logger.Info("ticket triaged",
		zap.String("ticket_id", ticket.ID),
		zap.String("assignee_id", assignee.ID),
		zap.Bool("fallback", fallback),
		zap.Int("related_skills", len(skills)))
	return nil
}

func (s *TicketAnalysisService) analyze(ctx context.Context, ticket *domain.Ticket) *llm.Analysis {
	if s.classifier == nil {
		return nil
	}
	analysis, err := s.classifier.Analyze(ctx, ticket.Title, ticket.Description)
	if err != nil {
		s.logger.Warn("ticket analysis failed; continuing without it",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return nil
	}
	return analysis
}

// ApplyAnalysis copies a classifier result onto ticket and moves it to
// In Progress. An unknown priority becomes Medium.
func ApplyAnalysis(ticket *domain.Ticket, analysis *llm.Analysis) {
	priority := domain.TicketPriority(strings.TrimSpace(analysis.Priority))
	if !priority.Valid() {
		priority = domain.TicketPriorityMedium
	}
	ticket.Priority = &priority
	ticket.HelpfulNotes = analysis.HelpfulNotes
	ticket.RelatedSkills = domain.NormalizeSkills(analysis.RelatedSkills)
	ticket.Status = domain.TicketStatusInProgress
}

func (s *TicketAnalysisService) notifyAssignee(ctx context.Context, assignee *domain.User, ticket *domain.Ticket) {
	if s.mailer == nil || assignee.Email == "" {
		return
	}
	if err := s.mailer.Send(ctx, assignee.Email, "Ticket Assigned", AssignmentMailBody(ticket)); err != nil {
		s.logger.Warn("assignment mail failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// AssignmentMailBody renders the notification sent to a new assignee.
func AssignmentMailBody(ticket *domain.Ticket) string {
	priority := "Not set"
	if ticket.Priority != nil {
		priority = string(*ticket.Priority)
	}
	deadline := "No deadline set"
	if ticket.Deadline != nil {
		deadline = ticket.Deadline.UTC().Format(time.RFC1123)
	}
	return fmt.Sprintf("A new ticket has been assigned to you:\n\nTitle: %s\nPriority: %s\nDeadline: %s\n\nPlease check the system for details.",
		ticket.Title, priority, deadline)
}
