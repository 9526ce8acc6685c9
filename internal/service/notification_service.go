package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/repository"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// Poster publishes a short message to the team channel.
type Poster interface {
	Post(ctx context.Context, text string) error
}

// NotificationService turns domain events into mail and chat notifications.
type NotificationService struct {
	users  repository.UserRepository
	mailer Mailer
	chat   Poster
	logger *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	UserRepo repository.UserRepository
	Mailer   Mailer
	Chat     Poster
	Logger   *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		users:  deps.UserRepo,
		mailer: deps.Mailer,
		chat:   deps.Chat,
		logger: logger,
	}
}

// Handlers returns the handler of every event type the service reacts to.
func (n *NotificationService) Handlers() map[events.EventType]events.EventHandler {
	return map[events.EventType]events.EventHandler{
		events.EventUserSignup:          n.handleUserSignup,
		events.EventTicketAssigned:      n.handleTicketAssigned,
		events.EventTicketStatusChanged: n.handleTicketStatusChanged,
		events.EventTicketCommentAdded:  n.handleTicketCommentAdded,
	}
}

const welcomeSubject = "Welcome to Ticket.io: your AI ticket assistant"

func welcomeBody(username string) string {
	if username == "" {
		username = "there"
	}
	return fmt.Sprintf("Hi %s,\n\n"+
		"Thanks for signing up for Ticket.io. We're excited to have you onboard.\n\n"+
		"Next steps:\n"+
		"- Create your first ticket from the dashboard\n"+
		"- Add skills to your profile (if you're applying to moderate)\n"+
		"- Visit the documentation or help section in the app to learn more\n\n"+
		"If you have any questions, reply to this email and we'll help you out.\n\n"+
		"Best,\nThe Ticket.io Team", username)
}

func (n *NotificationService) handleUserSignup(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserSignupPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	user, err := n.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			n.logger.Warn("signup welcome skipped; user no longer exists", zap.String("user_id", payload.UserID))
			return nil
		}
		return err
	}
	if n.mailer == nil {
		return nil
	}
	return n.mailer.Send(ctx, user.Email, welcomeSubject, welcomeBody(user.Username))
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketAssigned",
		zap.String("ticket_id", event.TicketID),
		zap.String("assignee_id", payload.AssigneeID),
		zap.Bool("fallback", payload.Fallback))

	priority := "Not set"
	if payload.Priority != nil {
		priority = string(*payload.Priority)
	}
	text := fmt.Sprintf("Ticket %q assigned to %s (priority: %s)", payload.Title, payload.AssigneeEmail, priority)
	if payload.Fallback {
		text += " via admin fallback"
	}
	return n.post(ctx, text)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketStatusChanged",
		zap.String("ticket_id", event.TicketID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)),
		zap.String("actor_id", event.Actor.UserID))
	return n.post(ctx, fmt.Sprintf("Ticket %s moved from %s to %s", event.TicketID, payload.OldStatus, payload.NewStatus))
}

func (n *NotificationService) handleTicketCommentAdded(_ context.Context, event events.Event) error {
	n.logger.Info("TicketCommentAdded",
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) post(ctx context.Context, text string) error {
	if n.chat == nil {
		return nil
	}
	return n.chat.Post(ctx, text)
}
