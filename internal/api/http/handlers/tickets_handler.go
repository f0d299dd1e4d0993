package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket workflow.
type TicketsHandler struct {
	service *service.WorkflowService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(workflow *service.WorkflowService) *TicketsHandler {
	return &TicketsHandler{service: workflow}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req service.TicketDraft
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Create(c.UserContext(), auth.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), auth.CurrentUser(c), query)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketDetailsResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	details, err := h.service.Get(c.UserContext(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailsResponse(details)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req service.TicketUpdate
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateDetails(c.UserContext(), auth.CurrentUser(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), auth.CurrentUser(c), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangeStatus POST /tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	var completion *time.Time
	if req.CompletionDate != nil && *req.CompletionDate != "" {
		parsed, err := time.Parse(dto.DateLayout, *req.CompletionDate)
		if err != nil {
			return apperrors.NewValidationError("validation failed", map[string]any{"completion_date": "date"})
		}
		completion = &parsed
	}
	ticket, err := h.service.Transition(c.UserContext(), auth.CurrentUser(c), id, req.Status, completion)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// AddComment POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.UserContext(), auth.CurrentUser(c), id, req.Message, req.Private)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCommentResponse(comment)})
}

// ListComments GET /tickets/:id/comments.
func (h *TicketsHandler) ListComments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.service.ListComments(c.UserContext(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, dto.NewCommentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddPart POST /tickets/:id/parts.
func (h *TicketsHandler) AddPart(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.PartUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	usage, err := h.service.AddPart(c.UserContext(), auth.CurrentUser(c), id, req.PartID, req.Quantity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPartUsageResponse(usage)})
}

// ListParts GET /tickets/:id/parts.
func (h *TicketsHandler) ListParts(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	usage, err := h.service.ListParts(c.UserContext(), auth.CurrentUser(c), id)
	if err != nil {
		return err
	}
	items := make([]dto.PartUsageResponse, 0, len(usage))
	for i := range usage {
		items = append(items, dto.NewPartUsageResponse(&usage[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// RegisterPart POST /parts.
func (h *TicketsHandler) RegisterPart(c *fiber.Ctx) error {
	var req service.PartDraft
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	part, err := h.service.RegisterPart(c.UserContext(), auth.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPartResponse(part)})
}

// LowStock GET /parts/low-stock.
func (h *TicketsHandler) LowStock(c *fiber.Ctx) error {
	parts, err := h.service.ListLowStock(c.UserContext(), auth.CurrentUser(c))
	if err != nil {
		return err
	}
	items := make([]dto.PartResponse, 0, len(parts))
	for i := range parts {
		items = append(items, dto.NewPartResponse(&parts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketQuery, error) {
	query := service.TicketQuery{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			query.Statuses = append(query.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		p, err := strconv.Atoi(priorityStr)
		if err != nil {
			return query, apperrors.NewValidationError("validation failed", map[string]any{"priority": "int"})
		}
		priority := domain.Priority(p)
		query.Priority = &priority
	}
	if typ := strings.TrimSpace(c.Query("appliance_type")); typ != "" {
		query.ApplianceType = &typ
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query.SearchTerm = &search
	}
	var err error
	if query.MasterID, err = queryID(c, "master_id"); err != nil {
		return query, err
	}
	if query.ClientID, err = queryID(c, "client_id"); err != nil {
		return query, err
	}
	query.StartFrom = parseDate(c.Query("from"))
	query.StartTo = parseDate(c.Query("to"))

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	query.Offset = (page - 1) * pageSize
	query.Limit = pageSize
	return query, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid id", map[string]any{name: "id"})
	}
	return id, nil
}

func queryID(c *fiber.Ctx, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("invalid id", map[string]any{name: "id"})
	}
	return &id, nil
}

func parseDate(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(dto.DateLayout, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
