package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/api/dto"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/service"
)

// StatisticsHandler serves the dashboard summary.
type StatisticsHandler struct {
	service *service.StatisticsService
}

// NewStatisticsHandler constructs handler.
func NewStatisticsHandler(statistics *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{service: statistics}
}

// Summary GET /statistics.
func (h *StatisticsHandler) Summary(c *fiber.Ctx) error {
	stats, err := h.service.Summary(c.UserContext(), auth.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatisticsResponse(stats)})
}
