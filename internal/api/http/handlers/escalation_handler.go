package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// EscalationHandler exposes assignment and quality-control endpoints.
type EscalationHandler struct {
	service *service.AssignmentService
}

// NewEscalationHandler constructs handler.
func NewEscalationHandler(assignment *service.AssignmentService) *EscalationHandler {
	return &EscalationHandler{service: assignment}
}

// ExtendDeadline POST /tickets/:id/extend.
func (h *EscalationHandler) ExtendDeadline(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ExtendDeadlineRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ExtendDeadline(c.UserContext(), auth.CurrentUser(c), id, req.ExtraDays, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AssignMaster POST /tickets/:id/assign.
func (h *EscalationHandler) AssignMaster(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignMasterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AssignMaster(c.UserContext(), auth.CurrentUser(c), id, req.MasterID, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddNote POST /tickets/:id/notes.
func (h *EscalationHandler) AddNote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AddNote(c.UserContext(), auth.CurrentUser(c), id, req.Note)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// History GET /tickets/:id/history.
func (h *EscalationHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Overdue GET /escalations/overdue.
func (h *EscalationHandler) Overdue(c *fiber.Ctx) error {
	threshold := c.QueryInt("threshold", 0)
	overdue, err := h.service.ListOverdue(c.UserContext(), auth.CurrentUser(c), threshold)
	if err != nil {
		return err
	}
	items := make([]dto.OverdueResponse, 0, len(overdue))
	for i := range overdue {
		items = append(items, dto.OverdueResponse{
			TicketResponse: dto.NewTicketResponse(&overdue[i].Ticket),
			ElapsedDays:    overdue[i].ElapsedDays,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
