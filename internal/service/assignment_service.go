package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// AssignmentService handles master assignment, deadline extension and overdue tracking.
type AssignmentService struct {
	tx         repository.Transactor
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	threshold  int
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	Transactor  repository.Transactor
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
	OverdueDays int
}

// OverdueTicket is an open ticket past the overdue threshold.
type OverdueTicket struct {
	Ticket      domain.Ticket
	ElapsedDays int
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	threshold := deps.OverdueDays
	if threshold <= 0 {
		threshold = domain.DefaultOverdueThresholdDays
	}
	return &AssignmentService{
		tx:         deps.Transactor,
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		logger:     nopIfNil(deps.Logger),
		metrics:    deps.Metrics,
		now:        clockOrNow(deps.Now),
		threshold:  threshold,
	}
}

// ExtendDeadline pushes the ticket deadline to start date + extraDays + days already elapsed.
func (s *AssignmentService) ExtendDeadline(ctx context.Context, actor *domain.User, ticketID int64, extraDays int, reason string) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordWorkflow("extend_deadline", outcome(err)) }()

	if err := requireAny(actor, domain.PermQualityControl); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	details := map[string]any{}
	if extraDays < 1 {
		details["extra_days"] = "gte=1"
	}
	if reason == "" {
		details["reason"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("validation failed", details)
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		oldDeadline := ticket.ExtendedDeadline
		deadline := domain.DateOf(ticket.StartDate).AddDate(0, 0, extraDays+ticket.ElapsedDays(now))
		ticket.ExtendedDeadline = &deadline
		ticket.QualityManagerID = idPtr(actor.ID)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		line := auditLine(now, fmt.Sprintf("Продлено на %d дней. Причина: %s", extraDays, reason))
		if ticket.Notes, err = s.tickets.AppendNote(ctx, ticket.ID, line); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypeDeadline,
			map[string]any{"extended_deadline": oldDeadline},
			map[string]any{"extended_deadline": deadline, "extra_days": extraDays, "reason": reason},
		); err != nil {
			return err
		}
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventDeadlineExtended,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload: events.DeadlineExtendedPayload{
				MasterID:    ticket.MasterID,
				ExtraDays:   extraDays,
				NewDeadline: deadline,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket deadline extended",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("actor_id", actor.ID),
		zap.Int("extra_days", extraDays))
	return ticket, nil
}

// AssignMaster hands the ticket to another master.
func (s *AssignmentService) AssignMaster(ctx context.Context, actor *domain.User, ticketID, masterID int64, reason string) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordWorkflow("assign_master", outcome(err)) }()

	if err := requireAny(actor, domain.PermQualityControl, domain.PermAssignMaster); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"reason": "required"})
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		master, err := s.users.GetByID(ctx, masterID)
		if err != nil {
			return lookupErr(err, "master", masterID)
		}
		if err := checkMaster(master); err != nil {
			return err
		}

		oldMaster := ticket.MasterID
		ticket.MasterID = idPtr(master.ID)
		ticket.MasterName = master.FullName
		if actor.Is(domain.RoleQualityManager) {
			ticket.QualityManagerID = idPtr(actor.ID)
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		line := auditLine(now, "Назначен новый мастер. Причина: "+reason)
		if ticket.Notes, err = s.tickets.AppendNote(ctx, ticket.ID, line); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypeMaster,
			map[string]any{"master_id": idValue(oldMaster)},
			map[string]any{"master_id": master.ID, "reason": reason},
		); err != nil {
			return err
		}
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventMasterAssigned,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload: events.MasterAssignedPayload{
				OldMasterID: oldMaster,
				NewMasterID: master.ID,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("master assigned",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("actor_id", actor.ID),
		zap.Int64("master_id", masterID))
	return ticket, nil
}

// AddNote appends a quality-control remark to the ticket notes.
func (s *AssignmentService) AddNote(ctx context.Context, actor *domain.User, ticketID int64, note string) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordWorkflow("add_note", outcome(err)) }()

	if err := requireAny(actor, domain.PermQualityControl); err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"note": "required"})
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		ticket.QualityManagerID = idPtr(actor.ID)
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		line := auditLine(now, note)
		if ticket.Notes, err = s.tickets.AppendNote(ctx, ticket.ID, line); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypeNote, nil, map[string]any{"note": note}); err != nil {
			return err
		}
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventNoteAdded,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload:  events.NoteAddedPayload{Line: line},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("quality note added", zap.Int64("ticket_id", ticket.ID), zap.Int64("actor_id", actor.ID))
	return ticket, nil
}

// ListOverdue returns open tickets older than thresholdDays, longest waiting first.
// A non-positive threshold uses the configured default.
func (s *AssignmentService) ListOverdue(ctx context.Context, actor *domain.User, thresholdDays int) ([]OverdueTicket, error) {
	if err := requireAny(actor, domain.PermQualityControl, domain.PermViewStatistics); err != nil {
		return nil, err
	}
	return s.overdue(ctx, thresholdDays)
}

func (s *AssignmentService) overdue(ctx context.Context, thresholdDays int) ([]OverdueTicket, error) {
	if thresholdDays <= 0 {
		thresholdDays = s.threshold
	}
	now := s.now()
	cutoff := domain.DateOf(now).AddDate(0, 0, -thresholdDays)
	candidates, err := s.tickets.ListOpenStartedBefore(ctx, cutoff)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := make([]OverdueTicket, 0, len(candidates))
	for _, t := range candidates {
		if !t.IsOverdue(now, thresholdDays) {
			continue
		}
		result = append(result, OverdueTicket{Ticket: t, ElapsedDays: t.ElapsedDays(now)})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].ElapsedDays != result[j].ElapsedDays {
			return result[i].ElapsedDays > result[j].ElapsedDays
		}
		return result[i].Ticket.ID < result[j].Ticket.ID
	})
	return result, nil
}

// History lists the structured audit trail of a ticket.
func (s *AssignmentService) History(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.TicketHistory, error) {
	if err := requireAny(actor, domain.PermQualityControl, domain.PermViewStatistics, domain.PermEditRequest); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// PublishOverdueDigest announces the current overdue tickets to quality managers.
// It runs without an actor and returns the number of overdue tickets.
func (s *AssignmentService) PublishOverdueDigest(ctx context.Context) (int, error) {
	var count int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		overdue, err := s.overdue(ctx, 0)
		if err != nil {
			return err
		}
		count = len(overdue)
		if count == 0 {
			return nil
		}
		ids := make([]int64, 0, count)
		for _, o := range overdue {
			ids = append(ids, o.Ticket.ID)
		}
		return publish(ctx, s.dispatcher, s.now(), events.Event{
			Type: events.EventOverdueDigest,
			Payload: events.OverdueDigestPayload{
				Count:     count,
				Threshold: s.threshold,
				TicketIDs: ids,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("overdue digest published", zap.Int("count", count))
	return count, nil
}
