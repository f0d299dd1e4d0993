package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/service"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// NotificationsHandler serves the caller's inbox.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notifications}
}

// List GET /notifications?unread=.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	list, err := h.service.List(c.UserContext(), user.ID, c.QueryBool("unread", false))
	if err != nil {
		return err
	}
	items := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewNotificationResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	count, err := h.service.UnreadCount(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	user := auth.CurrentUser(c)
	if user == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), user.ID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
