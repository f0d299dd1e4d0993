package domain

import "time"

// TicketStatus enumerates lifecycle states for repair tickets.
type TicketStatus string

const (
	StatusNew          TicketStatus = "Новая заявка"
	StatusInProgress   TicketStatus = "В процессе ремонта"
	StatusWaitingParts TicketStatus = "Ожидание запчастей"
	StatusReady        TicketStatus = "Готова к выдаче"
)

// Statuses lists the lifecycle states in their conceptual order.
var Statuses = []TicketStatus{StatusNew, StatusInProgress, StatusWaitingParts, StatusReady}

// ParseStatus returns the status matching the literal.
func ParseStatus(value string) (TicketStatus, bool) {
	for _, s := range Statuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Valid reports whether the status is one of the fixed literals.
func (s TicketStatus) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// Terminal reports whether the status closes the repair.
func (s TicketStatus) Terminal() bool {
	return s == StatusReady
}

// progressByStatus keeps the historical ordering where waiting for parts
// reports less progress than active repair.
var progressByStatus = map[TicketStatus]int{
	StatusNew:          25,
	StatusWaitingParts: 50,
	StatusInProgress:   75,
	StatusReady:        100,
}

// Priority is the ticket urgency, 1 being the highest.
type Priority int

const (
	PriorityHigh        Priority = 1
	PriorityAboveMedium Priority = 2
	PriorityMedium      Priority = 3
	PriorityBelowMedium Priority = 4
	PriorityLow         Priority = 5

	DefaultPriority = PriorityMedium
)

var priorityLabels = map[Priority]string{
	PriorityHigh:        "Высокий",
	PriorityAboveMedium: "Выше среднего",
	PriorityMedium:      "Средний",
	PriorityBelowMedium: "Ниже среднего",
	PriorityLow:         "Низкий",
}

// Valid reports whether p is within [1,5].
func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// Label returns the display name of the priority.
func (p Priority) Label() string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return "Неизвестно"
}

// DefaultOverdueThresholdDays is the elapsed-day limit after which an open ticket is overdue.
const DefaultOverdueThresholdDays = 7

// Ticket is the aggregate for a repair request.
type Ticket struct {
	ID                 int64
	StartDate          time.Time
	ApplianceType      string
	ApplianceModel     string
	ProblemDescription string
	Status             TicketStatus
	CompletionDate     *time.Time
	ExtendedDeadline   *time.Time
	RepairParts        string
	Priority           Priority
	EstimatedCost      float64
	ActualCost         float64
	Notes              string
	ClientPhone        string
	ClientID           int64
	MasterID           *int64
	QualityManagerID   *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Read-side projections, populated by the store.
	ClientName string
	MasterName string
}

// ElapsedDays counts calendar days from the start date to now, or to the
// completion date once the ticket is completed.
func (t *Ticket) ElapsedDays(now time.Time) int {
	end := now
	if t.CompletionDate != nil {
		end = *t.CompletionDate
	}
	return DaysBetween(t.StartDate, end)
}

// IsOverdue reports whether the ticket is open for more than threshold days.
func (t *Ticket) IsOverdue(now time.Time, threshold int) bool {
	return !t.Status.Terminal() && t.ElapsedDays(now) > threshold
}

// ProgressPercent maps the status to a completion percentage.
func (t *Ticket) ProgressPercent() int {
	return progressByStatus[t.Status]
}

// HasMaster reports whether a master is assigned.
func (t *Ticket) HasMaster() bool {
	return t.MasterID != nil && *t.MasterID > 0
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from one date to another.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
