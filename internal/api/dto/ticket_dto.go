package dto

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/service"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// TransitionRequest payload for POST /tickets/:id/status.
type TransitionRequest struct {
	Status         string  `json:"status"`
	CompletionDate *string `json:"completion_date"`
}

// CommentRequest payload.
type CommentRequest struct {
	Message string `json:"message"`
	Private bool   `json:"private"`
}

// PartUsageRequest payload.
type PartUsageRequest struct {
	PartID   int64 `json:"part_id"`
	Quantity int   `json:"quantity"`
}

// ExtendDeadlineRequest payload.
type ExtendDeadlineRequest struct {
	ExtraDays int    `json:"extra_days"`
	Reason    string `json:"reason"`
}

// AssignMasterRequest payload.
type AssignMasterRequest struct {
	MasterID int64  `json:"master_id"`
	Reason   string `json:"reason"`
}

// NoteRequest payload.
type NoteRequest struct {
	Note string `json:"note"`
}

// TicketResponse is a ticket with its derived fields.
type TicketResponse struct {
	ID                 int64               `json:"id"`
	StartDate          string              `json:"start_date"`
	ApplianceType      string              `json:"appliance_type"`
	ApplianceModel     string              `json:"appliance_model"`
	ProblemDescription string              `json:"problem_description"`
	Status             domain.TicketStatus `json:"status"`
	CompletionDate     *string             `json:"completion_date"`
	ExtendedDeadline   *string             `json:"extended_deadline"`
	RepairParts        string              `json:"repair_parts"`
	Priority           domain.Priority     `json:"priority"`
	PriorityLabel      string              `json:"priority_label"`
	EstimatedCost      float64             `json:"estimated_cost"`
	ActualCost         float64             `json:"actual_cost"`
	Notes              string              `json:"notes"`
	ClientID           int64               `json:"client_id"`
	ClientName         string              `json:"client_name"`
	ClientPhone        string              `json:"client_phone"`
	MasterID           *int64              `json:"master_id"`
	MasterName         string              `json:"master_name,omitempty"`
	QualityManagerID   *int64              `json:"quality_manager_id"`
	ElapsedDays        *int                `json:"elapsed_days,omitempty"`
	ProgressPercent    int                 `json:"progress_percent"`
	Overdue            *bool               `json:"overdue,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// NewTicketResponse maps a stored ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                 t.ID,
		StartDate:          t.StartDate.Format(DateLayout),
		ApplianceType:      t.ApplianceType,
		ApplianceModel:     t.ApplianceModel,
		ProblemDescription: t.ProblemDescription,
		Status:             t.Status,
		CompletionDate:     formatDate(t.CompletionDate),
		ExtendedDeadline:   formatDate(t.ExtendedDeadline),
		RepairParts:        t.RepairParts,
		Priority:           t.Priority,
		PriorityLabel:      t.Priority.Label(),
		EstimatedCost:      t.EstimatedCost,
		ActualCost:         t.ActualCost,
		Notes:              t.Notes,
		ClientID:           t.ClientID,
		ClientName:         t.ClientName,
		ClientPhone:        domain.FormatPhone(t.ClientPhone),
		MasterID:           t.MasterID,
		MasterName:         t.MasterName,
		QualityManagerID:   t.QualityManagerID,
		ProgressPercent:    t.ProgressPercent(),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// NewTicketDetailsResponse maps a ticket read with its derived fields.
func NewTicketDetailsResponse(d *service.TicketDetails) TicketResponse {
	resp := NewTicketResponse(&d.Ticket)
	elapsed, overdue := d.ElapsedDays, d.Overdue
	resp.ElapsedDays = &elapsed
	resp.Overdue = &overdue
	resp.ProgressPercent = d.ProgressPercent
	return resp
}

// CommentResponse represents a ticket comment.
type CommentResponse struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Message    string    `json:"message"`
	Private    bool      `json:"private"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewCommentResponse maps a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		AuthorID:   c.AuthorID,
		AuthorName: c.AuthorName,
		Message:    c.Message,
		Private:    c.Private,
		CreatedAt:  c.CreatedAt,
	}
}

// PartUsageResponse is a part consumed by a ticket.
type PartUsageResponse struct {
	PartID     int64   `json:"part_id"`
	Name       string  `json:"name"`
	VendorCode string  `json:"vendor_code"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Total      float64 `json:"total"`
	UsedDate   string  `json:"used_date"`
}

// NewPartUsageResponse maps part usage.
func NewPartUsageResponse(u *domain.PartUsage) PartUsageResponse {
	return PartUsageResponse{
		PartID:     u.PartID,
		Name:       u.PartName,
		VendorCode: u.VendorCode,
		Quantity:   u.Quantity,
		Price:      u.Price,
		Total:      u.Total(),
		UsedDate:   u.UsedDate.Format(DateLayout),
	}
}

// PartResponse is a catalog part.
type PartResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	VendorCode  string  `json:"vendor_code"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	MinQuantity int     `json:"min_quantity"`
	Supplier    string  `json:"supplier,omitempty"`
}

// NewPartResponse maps a catalog part.
func NewPartResponse(p *domain.Part) PartResponse {
	return PartResponse{
		ID:          p.ID,
		Name:        p.Name,
		VendorCode:  p.VendorCode,
		Price:       p.Price,
		Quantity:    p.Quantity,
		MinQuantity: p.MinQuantity,
		Supplier:    p.Supplier,
	}
}

// HistoryResponse is an audit trail entry.
type HistoryResponse struct {
	ID          int64                   `json:"id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	ChangedByID *int64                  `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewHistoryResponse maps a history entry.
func NewHistoryResponse(h *domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:          h.ID,
		ChangeType:  h.ChangeType,
		ChangedByID: h.ChangedByID,
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		CreatedAt:   h.CreatedAt,
	}
}

// OverdueResponse is an entry of the overdue list.
type OverdueResponse struct {
	TicketResponse
	ElapsedDays int `json:"elapsed_days"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
