package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// ReapplyCooldown is how long a rejected applicant waits before applying again.
const ReapplyCooldown = 72 * time.Hour

// Decision is a reviewer's verdict on a moderator request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ModeratorRequestInput is the application payload. Skills is a
// comma-separated list.
type ModeratorRequestInput struct {
	Username string
	Email    string
	Skills   string
}

// ModeratorRequestService handles applications to become a moderator.
type ModeratorRequestService struct {
	requests repository.ModeratorRequestRepository
	users    repository.UserRepository
	cache    *cache.Cache
	mailer   Mailer
	logger   *zap.Logger
	now      func() time.Time
}

// ModeratorRequestDependencies bundles collaborators.
type ModeratorRequestDependencies struct {
	RequestRepo repository.ModeratorRequestRepository
	UserRepo    repository.UserRepository
	Cache       *cache.Cache
	Mailer      Mailer
	Logger      *zap.Logger
}

// NewModeratorRequestService builds the service.
func NewModeratorRequestService(deps ModeratorRequestDependencies) *ModeratorRequestService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModeratorRequestService{
		requests: deps.RequestRepo,
		users:    deps.UserRepo,
		cache:    deps.Cache,
		mailer:   deps.Mailer,
		logger:   logger,
		now:      time.Now,
	}
}

// Create files an application for the caller. Admins cannot apply, only one
// request may be pending, and a rejection blocks reapplying for 72 hours.
func (s *ModeratorRequestService) Create(ctx context.Context, applicant *domain.User, in ModeratorRequestInput) (*domain.ModeratorRequest, error) {
	if applicant == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if applicant.Role == domain.RoleAdmin {
		return nil, apperrors.NewValidationError("admins cannot apply to be moderators", nil)
	}

	if _, err := s.requests.LatestByApplicantAndStatus(ctx, applicant.ID, domain.ModeratorRequestPending); err == nil {
		return nil, apperrors.NewConflict("you already have a pending request", nil)
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	rejected, err := s.requests.LatestByApplicantAndStatus(ctx, applicant.ID, domain.ModeratorRequestRejected)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}
	if wait := s.cooldownHours(rejected); wait > 0 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("you were recently rejected; please wait %d more hour(s) before reapplying", wait),
			map[string]any{"cooldown_hours": wait})
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = applicant.Username
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = applicant.Email
	}
	req := &domain.ModeratorRequest{
		ApplicantID: applicant.ID,
		Username:    username,
		Email:       email,
		Skills:      SplitSkills(in.Skills),
		Status:      domain.ModeratorRequestPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.send(ctx, req.Email, "Moderator request submitted",
		"Your request to become a moderator has been received and is pending review.")
	if reviewer := s.firstReviewer(ctx); reviewer != nil {
		s.send(ctx, reviewer.Email, "New moderator application",
			fmt.Sprintf("A new moderator application has been submitted by %s (%s). Please review in the admin panel.",
				req.Username, req.Email))
	}
	s.logger.Info("moderator request created", zap.String("request_id", req.ID), zap.String("applicant_id", applicant.ID))
	return req, nil
}

// Mine returns the caller's latest request, if any, and the hours left on a
// rejection cooldown.
func (s *ModeratorRequestService) Mine(ctx context.Context, applicant *domain.User) (*domain.ModeratorRequest, int, error) {
	if applicant == nil {
		return nil, 0, apperrors.NewUnauthorized("authentication required")
	}
	req, err := s.requests.LatestByApplicant(ctx, applicant.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, 0, nil
		}
		return nil, 0, apperrors.MapError(err)
	}
	if req.Status != domain.ModeratorRequestRejected {
		return req, 0, nil
	}
	return req, s.cooldownHours(req), nil
}

// ListPending returns every pending request, newest first. Staff only.
func (s *ModeratorRequestService) ListPending(ctx context.Context, reviewer *domain.User) ([]domain.ModeratorRequest, error) {
	if reviewer == nil || !reviewer.Role.IsStaff() {
		return nil, apperrors.NewForbidden("not allowed")
	}
	requests, err := s.requests.ListByStatus(ctx, domain.ModeratorRequestPending)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if requests == nil {
		requests = []domain.ModeratorRequest{}
	}
	return requests, nil
}

// Decide accepts or rejects a pending request. Accepting promotes the
// applicant to moderator and merges the requested skills into theirs.
func (s *ModeratorRequestService) Decide(ctx context.Context, reviewer *domain.User, requestID string, decision Decision) (*domain.ModeratorRequest, error) {
	if decision != DecisionAccept && decision != DecisionReject {
		return nil, apperrors.NewValidationError("invalid action", map[string]any{"action": decision})
	}
	if reviewer == nil || !reviewer.Role.IsStaff() {
		return nil, apperrors.NewForbidden("not allowed")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, notFoundOr(err, "request", requestID)
	}
	if req.Status != domain.ModeratorRequestPending {
		return nil, apperrors.NewConflict("request already processed", map[string]any{"status": req.Status})
	}

	status := domain.ModeratorRequestAccepted
	var rejectedAt *time.Time
	if decision == DecisionReject {
		status = domain.ModeratorRequestRejected
		now := s.now().UTC()
		rejectedAt = &now
	}
	if err := s.requests.Decide(ctx, req.ID, status, reviewer.ID, rejectedAt); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewConflict("request already processed", nil)
		}
		return nil, apperrors.MapError(err)
	}
	req.Status = status
	req.ReviewedBy = &reviewer.ID
	req.RejectedAt = rejectedAt

	if status == domain.ModeratorRequestAccepted {
		if err := s.promote(ctx, req); err != nil {
			return nil, err
		}
	}

	s.send(ctx, req.Email, fmt.Sprintf("Moderator request %s", req.Status),
		fmt.Sprintf("Your moderator request has been %s.", req.Status))
	s.logger.Info("moderator request decided",
		zap.String("request_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.String("reviewer_id", reviewer.ID))
	return req, nil
}

func (s *ModeratorRequestService) promote(ctx context.Context, req *domain.ModeratorRequest) error {
	user, err := s.users.GetByID(ctx, req.ApplicantID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Warn("accepted applicant no longer exists", zap.String("applicant_id", req.ApplicantID))
			return nil
		}
		return apperrors.MapError(err)
	}
	user.Skills = domain.MergeSkills(user.Skills, req.Skills)
	if user.Role != domain.RoleAdmin {
		user.Role = domain.RoleModerator
	}
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	s.cache.Delete(ctx,
		cache.ModeratorsWithSkillsKey(),
		cache.ModeratorSkillsKey(user.ID),
		cache.UserSessionKey(user.ID))
	return nil
}

func (s *ModeratorRequestService) cooldownHours(rejected *domain.ModeratorRequest) int {
	if rejected == nil || rejected.RejectedAt == nil {
		return 0
	}
	elapsed := s.now().Sub(*rejected.RejectedAt)
	if elapsed >= ReapplyCooldown {
		return 0
	}
	return int(math.Ceil((ReapplyCooldown - elapsed).Hours()))
}

// firstReviewer is the oldest moderator, else the oldest admin.
func (s *ModeratorRequestService) firstReviewer(ctx context.Context) *domain.User {
	for _, role := range []domain.Role{domain.RoleModerator, domain.RoleAdmin} {
		users, err := s.users.ListByRoles(ctx, role)
		if err != nil {
			s.logger.Warn("reviewer lookup failed", zap.Error(err))
			return nil
		}
		for i := range users {
			if users[i].Email != "" {
				return &users[i]
			}
		}
	}
	return nil
}

func (s *ModeratorRequestService) send(ctx context.Context, to, subject, body string) {
	if s.mailer == nil || to == "" {
		return
	}
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		s.logger.Warn("moderator request mail failed", zap.String("subject", subject), zap.Error(err))
	}
}

// SplitSkills parses a comma-separated skill list into normalized skills.
func SplitSkills(csv string) []string {
	return domain.NormalizeSkills(strings.Split(csv, ","))
}
