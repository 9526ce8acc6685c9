package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-assistant/internal/api/dto"
	"github.com/spec-kit/ticket-assistant/internal/service"
	apperrors "github.com/spec-kit/ticket-assistant/pkg/util/errorutil"
)

// ModeratorRequestsHandler exposes moderator application endpoints.
type ModeratorRequestsHandler struct {
	service *service.ModeratorRequestService
}

// NewModeratorRequestsHandler constructs handler.
func NewModeratorRequestsHandler(svc *service.ModeratorRequestService) *ModeratorRequestsHandler {
	return &ModeratorRequestsHandler{service: svc}
}

// Create POST /api/mod-requests.
func (h *ModeratorRequestsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateModeratorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	created, err := h.service.Create(c.UserContext(), user, service.ModeratorRequestInput{
		Username: req.Username,
		Email:    req.Email,
		Skills:   req.Skills,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewModeratorRequestResponse(created)})
}

// Mine GET /api/mod-requests/me.
func (h *ModeratorRequestsHandler) Mine(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	req, cooldown, err := h.service.Mine(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"request":        dto.NewModeratorRequestResponse(req),
		"cooldown_hours": cooldown,
	}})
}

// ListPending GET /api/mod-requests.
func (h *ModeratorRequestsHandler) ListPending(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	requests, err := h.service.ListPending(c.UserContext(), user)
	if err != nil {
		return err
	}
	items := make([]*dto.ModeratorRequestResponse, 0, len(requests))
	for i := range requests {
		items = append(items, dto.NewModeratorRequestResponse(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Decide POST /api/mod-requests/:id/decide.
func (h *ModeratorRequestsHandler) Decide(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.DecideModeratorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	decision := service.Decision(strings.ToLower(strings.TrimSpace(req.Action)))
	decided, err := h.service.Decide(c.UserContext(), user, c.Params("id"), decision)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewModeratorRequestResponse(decided)})
}

