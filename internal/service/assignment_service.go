package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/config"
	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// ErrNoAssignee is returned by AssignTicket when neither a scored candidate
// nor an admin exists.
var ErrNoAssignee = errors.New("no moderator or admin available")

// AssignmentRecorder counts selection outcomes. *observability.Metrics satisfies it.
type AssignmentRecorder interface {
	RecordAssignment(outcome string)
}

// AssignmentService picks moderators for tickets and maintains their
// resolution statistics.
//
// Active-ticket counts are read without locking, so two concurrent selections
// can choose the same moderator before either assignment is written.
type AssignmentService struct {
	users       repository.UserRepository
	tickets     repository.TicketRepository
	cache       *cache.Cache
	ttl         cache.TTLPolicy
	policy      ScoringPolicy
	concurrency int
	dispatcher  events.Dispatcher
	recorder    AssignmentRecorder
	logger      *zap.Logger
	now         func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	UserRepo   repository.UserRepository
	TicketRepo repository.TicketRepository
	Cache      *cache.Cache
	TTL        cache.TTLPolicy
	Policy     config.AssignmentConfig
	Dispatcher events.Dispatcher
	Recorder   AssignmentRecorder
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := deps.Policy.WorkloadConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &AssignmentService{
		users:       deps.UserRepo,
		tickets:     deps.TicketRepo,
		cache:       deps.Cache,
		ttl:         deps.TTL,
		policy:      NewScoringPolicy(deps.Policy),
		concurrency: concurrency,
		dispatcher:  deps.Dispatcher,
		recorder:    deps.Recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// Roster returns every moderator and admin, read through the cache.
func (s *AssignmentService) Roster(ctx context.Context) ([]domain.User, error) {
	return cache.GetOrCompute(ctx, s.cache, cache.ModeratorsWithSkillsKey(), s.ttl.ModeratorList,
		func(ctx context.Context) ([]domain.User, error) {
			return s.users.ListByRoles(ctx, domain.RoleModerator, domain.RoleAdmin)
		})
}

// SelectModerator returns the best candidate for a ticket needing
// requiredSkills, or nil when there is none or anything fails.
func (s *AssignmentService) SelectModerator(ctx context.Context, requiredSkills []string) *domain.User {
	roster, err := s.Roster(ctx)
	if err != nil {
		s.logger.Warn("moderator selection failed: roster", zap.Error(err))
		s.record("error")
		return nil
	}
	if len(roster) == 0 {
		s.logger.Info("moderator selection: empty roster")
		s.record("none")
		return nil
	}

	active, err := s.activeCounts(ctx, roster)
	if err != nil {
		s.logger.Warn("moderator selection failed: workload", zap.Error(err))
		s.record("error")
		return nil
	}

	scores := make([]CandidateScore, len(roster))
	for i, user := range roster {
		scores[i] = s.policy.Score(user, requiredSkills, active[i])
	}
	winner := s.policy.Pick(scores)
	if winner == nil {
		s.record("none")
		return nil
	}

	s.logger.Debug("moderator selected",
		zap.String("moderator_id", winner.ID),
		zap.Float64("top_score", scores[0].Final),
		zap.Int("candidates", len(roster)),
		zap.Strings("required_skills", requiredSkills))
	s.record("selected")
	return winner
}

// activeCounts fetches the open-ticket count of every candidate concurrently.
func (s *AssignmentService) activeCounts(ctx context.Context, roster []domain.User) ([]int, error) {
	counts := make([]int, len(roster))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range roster {
		i := i
		g.Go(func() error {
			n, err := s.tickets.CountActiveByAssignee(gctx, roster[i].ID)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// RecordCompletion folds one resolved ticket into the candidate's running
// average and total. It must run once per transition into Completed; calling
// it twice for the same ticket counts it twice. Failures are logged only.
func (s *AssignmentService) RecordCompletion(ctx context.Context, candidateID string, createdAt, completedAt time.Time) {
	user, err := s.users.GetByID(ctx, candidateID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Debug("completion for unknown moderator ignored", zap.String("moderator_id", candidateID))
			return
		}
		s.logger.Warn("record completion: load moderator", zap.String("moderator_id", candidateID), zap.Error(err))
		return
	}

	elapsed := completedAt.Sub(createdAt).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	n := float64(user.TotalTicketsResolved)
	avg := (user.AverageResolutionTimeHours*n + elapsed) / (n + 1)
	total := user.TotalTicketsResolved + 1

	if err := s.users.UpdateStats(ctx, user.ID, total, avg); err != nil {
		s.logger.Warn("record completion: update stats", zap.String("moderator_id", candidateID), zap.Error(err))
		return
	}
	s.cache.Delete(ctx, cache.ModeratorsWithSkillsKey(), cache.ModeratorSkillsKey(user.ID))

	s.logger.Info("moderator stats updated",
		zap.String("moderator_id", user.ID),
		zap.Int("total_resolved", total),
		zap.Float64("avg_resolution_hours", avg),
		zap.Float64("elapsed_hours", elapsed))
}

// AssignTicket selects a moderator for ticket, falling back to the oldest
// admin, persists the assignment and announces it. The returned flag reports
// whether the fallback was used.
func (s *AssignmentService) AssignTicket(ctx context.Context, ticket *domain.Ticket, requiredSkills []string) (*domain.User, bool, error) {
	fallback := false
	assignee := s.SelectModerator(ctx, requiredSkills)
	if assignee == nil {
		admins, err := s.users.ListByRoles(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, false, err
		}
		if len(admins) == 0 {
			s.record("unassigned")
			return nil, false, ErrNoAssignee
		}
		assignee = &admins[0]
		fallback = true
		s.record("fallback")
	}

	if err := s.tickets.Assign(ctx, ticket.ID, assignee.ID); err != nil {
		return nil, false, err
	}
	ticket.AssignedTo = &assignee.ID
	ticket.AssigneeEmail = &assignee.Email

	now := s.now().UTC()
	if err := s.users.TouchLastAssigned(ctx, assignee.ID, now); err != nil {
		s.logger.Warn("stamp last assignment", zap.String("moderator_id", assignee.ID), zap.Error(err))
	}
	assignee.LastAssignedAt = &now

	s.cache.Delete(ctx, cache.ModeratorsWithSkillsKey())
	s.cache.InvalidateResource(ctx, cache.ResourceTickets)
	s.cache.InvalidateResource(ctx, cache.ResourceCounts)
	s.cache.InvalidateResource(ctx, cache.ResourceStats)

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("assignee_id", assignee.ID),
		zap.Bool("fallback", fallback))

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Payload: events.TicketAssignedPayload{
				AssigneeID:    assignee.ID,
				AssigneeEmail: assignee.Email,
				Title:         ticket.Title,
				Priority:      ticket.Priority,
				Fallback:      fallback,
			},
		})
	}
	return assignee, fallback, nil
}

// WarmRoster refreshes the cached roster ahead of the next selection.
func (s *AssignmentService) WarmRoster(ctx context.Context) error {
	roster, err := s.users.ListByRoles(ctx, domain.RoleModerator, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if len(roster) > 0 {
		s.cache.Set(ctx, cache.ModeratorsWithSkillsKey(), roster, s.ttl.ModeratorList)
	}
	return nil
}

func (s *AssignmentService) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordAssignment(outcome)
	}
}
