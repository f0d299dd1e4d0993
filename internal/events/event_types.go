package events

import (
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventMasterAssigned      EventType = "master_assigned"
	EventDeadlineExtended    EventType = "deadline_extended"
	EventNoteAdded           EventType = "note_added"
	EventCommentAdded        EventType = "comment_added"
	EventPartAdded           EventType = "part_added"
	EventOverdueDigest       EventType = "overdue_digest"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID int64       `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// ActorOf builds the actor record for a user.
func ActorOf(u *domain.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{UserID: u.ID, Role: u.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ClientID      int64           `json:"client_id"`
	MasterID      *int64          `json:"master_id,omitempty"`
	Priority      domain.Priority `json:"priority"`
	ApplianceType string          `json:"appliance_type"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	ClientID  int64               `json:"client_id"`
	MasterID  *int64              `json:"master_id,omitempty"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// MasterAssignedPayload payload.
type MasterAssignedPayload struct {
	OldMasterID *int64 `json:"old_master_id,omitempty"`
	NewMasterID int64  `json:"new_master_id"`
	Reason      string `json:"reason"`
}

// DeadlineExtendedPayload payload.
type DeadlineExtendedPayload struct {
	MasterID    *int64    `json:"master_id,omitempty"`
	ExtraDays   int       `json:"extra_days"`
	NewDeadline time.Time `json:"new_deadline"`
	Reason      string    `json:"reason"`
}

// NoteAddedPayload payload.
type NoteAddedPayload struct {
	Line string `json:"line"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID int64  `json:"comment_id"`
	AuthorID  int64  `json:"author_id"`
	MasterID  *int64 `json:"master_id,omitempty"`
	Private   bool   `json:"private"`
	Preview   string `json:"preview"`
}

// PartAddedPayload payload.
type PartAddedPayload struct {
	PartID   int64 `json:"part_id"`
	Added    int   `json:"added"`
	Quantity int   `json:"quantity"`
}

// OverdueDigestPayload payload.
type OverdueDigestPayload struct {
	Count     int     `json:"count"`
	Threshold int     `json:"threshold"`
	TicketIDs []int64 `json:"ticket_ids"`
}
