package dto

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// NotificationResponse is an inbox message.
type NotificationResponse struct {
	ID        int64                   `json:"id"`
	Message   string                  `json:"message"`
	Type      domain.NotificationType `json:"type"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponse maps an inbox message.
func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// StatisticsResponse is the dashboard summary.
type StatisticsResponse struct {
	Total           int                         `json:"total"`
	Active          int                         `json:"active"`
	Completed       int                         `json:"completed"`
	Overdue         int                         `json:"overdue"`
	AvgRepairDays   float64                     `json:"avg_repair_days"`
	TotalRevenue    float64                     `json:"total_revenue"`
	UniqueClients   int                         `json:"unique_clients"`
	ByStatus        map[domain.TicketStatus]int `json:"by_status"`
	ByApplianceType []CountResponse             `json:"by_appliance_type"`
	ByMonth         []CountResponse             `json:"by_month"`
	ByMaster        []MasterLoadResponse        `json:"by_master"`
}

// CountResponse is a labelled counter.
type CountResponse struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// MasterLoadResponse summarises one master's tickets.
type MasterLoadResponse struct {
	MasterID  int64  `json:"master_id"`
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Active    int    `json:"active"`
}

// NewStatisticsResponse maps the dashboard summary.
func NewStatisticsResponse(s *domain.Statistics) StatisticsResponse {
	resp := StatisticsResponse{
		Total:           s.Total,
		Active:          s.Active,
		Completed:       s.Completed,
		Overdue:         s.Overdue,
		AvgRepairDays:   s.AvgRepairDays,
		TotalRevenue:    s.TotalRevenue,
		UniqueClients:   s.UniqueClients,
		ByStatus:        s.ByStatus,
		ByApplianceType: counts(s.ByApplianceType),
		ByMonth:         counts(s.ByMonth),
		ByMaster:        make([]MasterLoadResponse, 0, len(s.ByMaster)),
	}
	for _, m := range s.ByMaster {
		resp.ByMaster = append(resp.ByMaster, MasterLoadResponse(m))
	}
	return resp
}

func counts(in []domain.CountByKey) []CountResponse {
	out := make([]CountResponse, 0, len(in))
	for _, c := range in {
		out = append(out, CountResponse(c))
	}
	return out
}
