package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus    TicketChangeType = "STATUS_CHANGE"
	ChangeTypeMaster    TicketChangeType = "MASTER_CHANGE"
	ChangeTypeDeadline  TicketChangeType = "DEADLINE_EXTENSION"
	ChangeTypeNote      TicketChangeType = "NOTE_ADDED"
	ChangeTypeDetails   TicketChangeType = "DETAILS_CHANGE"
	ChangeTypePartAdded TicketChangeType = "PART_ADDED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          int64
	TicketID    int64
	ChangedByID *int64
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
