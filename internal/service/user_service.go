package service

import (
	"context"
	"errors"
	netmail "net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/auth"
	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/config"
	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// UserService coordinates registration, login and account administration.
type UserService struct {
	users      repository.UserRepository
	cache      *cache.Cache
	ttl        cache.TTLPolicy
	tokenMgr   *auth.TokenManager
	bcryptCost int
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// UserDependencies encapsulates collaborators of the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Cache      *cache.Cache
	TTL        cache.TTLPolicy
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// SignupInput is the registration payload.
type SignupInput struct {
	Username string
	Email    string
	Password string
	Skills   []string
}

// UpdateUserInput is the admin edit payload. Empty Skills keep the current
// skills; an empty Role keeps the current role.
type UpdateUserInput struct {
	Email  string
	Skills []string
	Role   domain.Role
}

// NewUserService builds the service.
func NewUserService(cfg config.Config, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:      deps.UserRepo,
		cache:      deps.Cache,
		ttl:        deps.TTL,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Signup creates an account. The very first account becomes an admin; every
// later one starts as a plain user.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*domain.User, domain.Token, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, domain.Token{}, apperrors.NewValidationError("username, email and password are required", nil)
	}
	if _, err := netmail.ParseAddress(in.Email); err != nil {
		return nil, domain.Token{}, apperrors.NewValidationError("invalid email", map[string]any{"email": in.Email})
	}
	for _, identifier := range []string{in.Email, in.Username} {
		if _, err := s.users.GetByIdentifier(ctx, identifier); err == nil {
			return nil, domain.Token{}, apperrors.NewConflict("account already exists", map[string]any{"identifier": identifier})
		} else if !apperrors.IsNotFound(err) {
			return nil, domain.Token{}, apperrors.MapError(err)
		}
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, domain.Token{}, apperrors.MapError(err)
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, domain.Token{}, apperrors.NewValidationError("password must be at most 72 bytes", map[string]any{"field": "password"})
	}
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	now := s.now().UTC()
	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Skills:       domain.NormalizeSkills(in.Skills),
		Presence:     domain.PresenceOnline,
		LastSeen:     &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, domain.Token{}, apperrors.MapError(err)
	}
	if user.Role.IsStaff() {
		s.cache.Delete(ctx, cache.ModeratorsWithSkillsKey())
	}

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:  events.EventUserSignup,
			Actor: events.Actor{UserID: user.ID, Role: user.Role},
			Payload: events.UserSignupPayload{
				UserID:   user.ID,
				Username: user.Username,
				Email:    user.Email,
			},
		})
	}
	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, token, nil
}

// Login authenticates by email or username and marks the account online.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*domain.User, domain.Token, error) {
	user, err := s.users.GetByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, domain.Token{}, apperrors.MapError(err)
	}
	if !auth.PasswordMatches(user.PasswordHash, password) {
		return nil, domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}

	now := s.now().UTC()
	if err := s.users.UpdatePresence(ctx, user.ID, domain.PresenceOnline, now); err != nil {
		s.logger.Warn("login presence update failed", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.Presence = domain.PresenceOnline
		user.LastSeen = &now
		s.cache.Delete(ctx, cache.UserSessionKey(user.ID))
	}

	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// Logout verifies the token. Tokens are stateless, so nothing is revoked.
func (s *UserService) Logout(_ context.Context, token string) error {
	if _, err := s.tokenMgr.ParseToken(token); err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	return nil
}

// SessionUser loads the account behind a token, read through the session cache.
func (s *UserService) SessionUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := cache.GetOrCompute(ctx, s.cache, cache.UserSessionKey(userID), s.ttl.UserSession,
		func(ctx context.Context) (*domain.User, error) {
			return s.users.GetByID(ctx, userID)
		})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateUser changes role, skills or both of the account with the given email.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, in UpdateUserInput) (*domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if in.Role != "" && !in.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
	}

	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"email": in.Email})
		}
		return nil, apperrors.MapError(err)
	}
	if skills := domain.NormalizeSkills(in.Skills); len(skills) > 0 {
		user.Skills = skills
	}
	if in.Role != "" {
		user.Role = in.Role
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.cache.Delete(ctx,
		cache.ModeratorsWithSkillsKey(),
		cache.ModeratorSkillsKey(user.ID),
		cache.UserSessionKey(user.ID))
	s.logger.Info("user updated",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("actor_id", actor.ID))
	return user, nil
}

// ListUsers returns every account. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if actor == nil || actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// UpdatePresence sets the caller's presence and refreshes last_seen.
func (s *UserService) UpdatePresence(ctx context.Context, user *domain.User, presence domain.Presence) (*domain.User, error) {
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !presence.Valid() {
		return nil, apperrors.NewValidationError("invalid status; must be one of online, offline, dnd",
			map[string]any{"status": presence})
	}
	now := s.now().UTC()
	if err := s.users.UpdatePresence(ctx, user.ID, presence, now); err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": user.ID})
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Delete(ctx, cache.UserSessionKey(user.ID))

	updated := *user
	updated.Presence = presence
	updated.LastSeen = &now
	return &updated, nil
}

// ModeratorSkills returns the skills of a moderator, read through the cache.
func (s *UserService) ModeratorSkills(ctx context.Context, moderatorID string) ([]string, error) {
	skills, err := cache.GetOrCompute(ctx, s.cache, cache.ModeratorSkillsKey(moderatorID), s.ttl.ModeratorSkills,
		func(ctx context.Context) ([]string, error) {
			user, err := s.users.GetByID(ctx, moderatorID)
			if err != nil {
				return nil, err
			}
			if !user.Role.IsStaff() {
				return nil, apperrors.NewNotFound("moderator", map[string]any{"moderator_id": moderatorID})
			}
			return user.Skills, nil
		})
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("moderator", map[string]any{"moderator_id": moderatorID})
		}
		return nil, apperrors.MapError(err)
	}
	return skills, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *UserService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
