package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// WorkflowService coordinates the ticket lifecycle.
type WorkflowService struct {
	tx         repository.Transactor
	tickets    repository.TicketRepository
	users      repository.UserRepository
	comments   repository.CommentRepository
	parts      repository.PartRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	validate   *validator.Validate
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
	threshold  int
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	Transactor  repository.Transactor
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	CommentRepo repository.CommentRepository
	PartRepo    repository.PartRepository
	HistoryRepo repository.TicketHistoryRepository
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
	OverdueDays int
}

// TicketDraft describes a new repair request.
type TicketDraft struct {
	ApplianceType      string          `json:"appliance_type" validate:"required,max=100"`
	ApplianceModel     string          `json:"appliance_model" validate:"required,max=100"`
	ProblemDescription string          `json:"problem_description" validate:"required,max=2000"`
	ClientID           int64           `json:"client_id" validate:"required,gt=0"`
	ClientPhone        string          `json:"client_phone" validate:"required,phone"`
	MasterID           *int64          `json:"master_id" validate:"omitempty,gt=0"`
	Priority           domain.Priority `json:"priority" validate:"gte=0,lte=5"`
	EstimatedCost      float64         `json:"estimated_cost" validate:"gte=0"`
	RepairParts        string          `json:"repair_parts" validate:"max=2000"`
}

// TicketUpdate carries editable details. Nil fields stay unchanged.
type TicketUpdate struct {
	ApplianceType      *string          `json:"appliance_type" validate:"omitempty,min=1,max=100"`
	ApplianceModel     *string          `json:"appliance_model" validate:"omitempty,min=1,max=100"`
	ProblemDescription *string          `json:"problem_description" validate:"omitempty,min=1,max=2000"`
	RepairParts        *string          `json:"repair_parts" validate:"omitempty,max=2000"`
	Priority           *domain.Priority `json:"priority" validate:"omitempty,gte=1,lte=5"`
	EstimatedCost      *float64         `json:"estimated_cost" validate:"omitempty,gte=0"`
	ActualCost         *float64         `json:"actual_cost" validate:"omitempty,gte=0"`
}

// TicketQuery narrows ticket listings.
type TicketQuery struct {
	Statuses      []domain.TicketStatus
	ApplianceType *string
	Priority      *domain.Priority
	MasterID      *int64
	ClientID      *int64
	SearchTerm    *string
	StartFrom     *time.Time
	StartTo       *time.Time
	Limit         int
	Offset        int
}

// PartDraft registers a catalog part.
type PartDraft struct {
	Name        string  `json:"name" validate:"required,max=100"`
	VendorCode  string  `json:"vendor_code" validate:"required,vendor_code"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	MinQuantity int     `json:"min_quantity" validate:"gte=0"`
	Supplier    string  `json:"supplier" validate:"max=200"`
}

// TicketDetails is a ticket with its derived fields evaluated at read time.
type TicketDetails struct {
	domain.Ticket
	ElapsedDays     int
	ProgressPercent int
	Overdue         bool
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	threshold := deps.OverdueDays
	if threshold <= 0 {
		threshold = domain.DefaultOverdueThresholdDays
	}
	return &WorkflowService{
		tx:         deps.Transactor,
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		comments:   deps.CommentRepo,
		parts:      deps.PartRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		validate:   newValidator(),
		logger:     nopIfNil(deps.Logger),
		metrics:    deps.Metrics,
		now:        clockOrNow(deps.Now),
		threshold:  threshold,
	}
}

// Create registers a new ticket in status New.
func (s *WorkflowService) Create(ctx context.Context, actor *domain.User, draft TicketDraft) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordWorkflow("create", outcome(err)) }()

	if err := requireAny(actor, domain.PermCreateRequest); err != nil {
		return nil, err
	}
	trimAll(&draft.ApplianceType, &draft.ApplianceModel, &draft.ProblemDescription, &draft.ClientPhone, &draft.RepairParts)
	if err := validateStruct(s.validate, draft); err != nil {
		return nil, err
	}
	if draft.Priority == 0 {
		draft.Priority = domain.DefaultPriority
	}

	now := s.now()
	ticket = &domain.Ticket{
		StartDate:          domain.DateOf(now),
		ApplianceType:      draft.ApplianceType,
		ApplianceModel:     draft.ApplianceModel,
		ProblemDescription: draft.ProblemDescription,
		Status:             domain.StatusNew,
		RepairParts:        draft.RepairParts,
		Priority:           draft.Priority,
		EstimatedCost:      draft.EstimatedCost,
		ClientPhone:        draft.ClientPhone,
		ClientID:           draft.ClientID,
		MasterID:           draft.MasterID,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		client, err := s.users.GetByID(ctx, draft.ClientID)
		if err != nil {
			return lookupErr(err, "client", draft.ClientID)
		}
		if client.Role != domain.RoleClient {
			return apperrors.NewConsistencyViolation("user is not a client", map[string]any{"client_id": client.ID, "role": client.Role})
		}
		if draft.MasterID != nil {
			if _, err := s.loadMaster(ctx, *draft.MasterID); err != nil {
				return err
			}
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return apperrors.MapError(err)
		}
		ticket.ClientName = client.FullName
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload: events.TicketCreatedPayload{
				ClientID:      ticket.ClientID,
				MasterID:      ticket.MasterID,
				Priority:      ticket.Priority,
				ApplianceType: ticket.ApplianceType,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.Int64("actor_id", actor.ID))
	return ticket, nil
}

// Transition moves a ticket to another status. Any status may follow any other.
func (s *WorkflowService) Transition(ctx context.Context, actor *domain.User, ticketID int64, newStatus string, completionDate *time.Time) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordWorkflow("transition", outcome(err)) }()

	status, ok := domain.ParseStatus(strings.TrimSpace(newStatus))
	if !ok {
		return nil, apperrors.NewInvalidStatus(newStatus)
	}
	if err := requireAny(actor, domain.PermEditRequest); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := ensureMasterOwns(actor, ticket); err != nil {
			return err
		}

		oldStatus := ticket.Status
		ticket.Status = status
		if status == domain.StatusReady {
			completed := domain.DateOf(now)
			if completionDate != nil {
				completed = domain.DateOf(*completionDate)
				if completed.Before(domain.DateOf(ticket.StartDate)) {
					return apperrors.NewValidationError("validation failed",
						map[string]any{"completion_date": "after_start_date"})
				}
			}
			ticket.CompletionDate = &completed
		} else {
			ticket.CompletionDate = nil
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypeStatus,
			map[string]any{"status": oldStatus},
			map[string]any{"status": status, "completion_date": ticket.CompletionDate},
		); err != nil {
			return err
		}
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload: events.TicketStatusChangedPayload{
				ClientID:  ticket.ClientID,
				MasterID:  ticket.MasterID,
				OldStatus: oldStatus,
				NewStatus: status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket status changed",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int64("actor_id", actor.ID),
		zap.String("status", string(status)))
	return ticket, nil
}

// UpdateDetails edits descriptive fields of a ticket.
func (s *WorkflowService) UpdateDetails(ctx context.Context, actor *domain.User, ticketID int64, update TicketUpdate) (ticket *domain.Ticket, err error) {
	defer func() { s.metrics.RecordWorkflow("update_details", outcome(err)) }()

	if err := requireAny(actor, domain.PermEditRequest); err != nil {
		return nil, err
	}
	trimAll(update.ApplianceType, update.ApplianceModel, update.ProblemDescription, update.RepairParts)
	if err := validateStruct(s.validate, update); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err = s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := ensureMasterOwns(actor, ticket); err != nil {
			return err
		}
		oldValue, newValue := applyUpdate(ticket, update)
		if len(newValue) == 0 {
			return nil
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		return recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypeDetails, oldValue, newValue)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ticket details updated", zap.Int64("ticket_id", ticket.ID), zap.Int64("actor_id", actor.ID))
	return ticket, nil
}

func applyUpdate(ticket *domain.Ticket, update TicketUpdate) (map[string]any, map[string]any) {
	oldValue := map[string]any{}
	newValue := map[string]any{}
	setString := func(key string, field *string, value *string) {
		if value == nil || *field == *value {
			return
		}
		oldValue[key] = *field
		newValue[key] = *value
		*field = *value
	}
	setFloat := func(key string, field *float64, value *float64) {
		if value == nil || *field == *value {
			return
		}
		oldValue[key] = *field
		newValue[key] = *value
		*field = *value
	}
	setString("appliance_type", &ticket.ApplianceType, update.ApplianceType)
	setString("appliance_model", &ticket.ApplianceModel, update.ApplianceModel)
	setString("problem_description", &ticket.ProblemDescription, update.ProblemDescription)
	setString("repair_parts", &ticket.RepairParts, update.RepairParts)
	setFloat("estimated_cost", &ticket.EstimatedCost, update.EstimatedCost)
	setFloat("actual_cost", &ticket.ActualCost, update.ActualCost)
	if update.Priority != nil && ticket.Priority != *update.Priority {
		oldValue["priority"] = ticket.Priority
		newValue["priority"] = *update.Priority
		ticket.Priority = *update.Priority
	}
	return oldValue, newValue
}

// Get returns a ticket with its derived fields.
func (s *WorkflowService) Get(ctx context.Context, actor *domain.User, ticketID int64) (*TicketDetails, error) {
	ticket, err := s.readable(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	details := s.details(*ticket)
	return &details, nil
}

// List searches tickets visible to the actor, most urgent first.
func (s *WorkflowService) List(ctx context.Context, actor *domain.User, query TicketQuery) ([]TicketDetails, error) {
	if !canRead(actor) {
		return nil, apperrors.NewPermissionDenied("view_request")
	}
	for _, status := range query.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewInvalidStatus(string(status))
		}
	}
	if query.Priority != nil && !query.Priority.Valid() {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"priority": "range"})
	}

	filter := repository.TicketFilter{
		ClientID:      query.ClientID,
		MasterID:      query.MasterID,
		Statuses:      query.Statuses,
		ApplianceType: query.ApplianceType,
		Priority:      query.Priority,
		SearchTerm:    query.SearchTerm,
		StartFrom:     query.StartFrom,
		StartTo:       query.StartTo,
		Limit:         query.Limit,
		Offset:        query.Offset,
	}
	switch actor.Role {
	case domain.RoleClient:
		filter.ClientID = idPtr(actor.ID)
	case domain.RoleMaster:
		filter.MasterID = idPtr(actor.ID)
	}

	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	result := make([]TicketDetails, 0, len(tickets))
	for _, t := range tickets {
		result = append(result, s.details(t))
	}
	return result, nil
}

// Delete removes a ticket together with its comments, part usage and history.
func (s *WorkflowService) Delete(ctx context.Context, actor *domain.User, ticketID int64) (err error) {
	defer func() { s.metrics.RecordWorkflow("delete", outcome(err)) }()

	if err := requireAny(actor, domain.PermDeleteRequest); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return lookupErr(err, "ticket", ticketID)
	}
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", ticketID), zap.Int64("actor_id", actor.ID))
	return nil
}

// AddComment appends a comment. Clients may only post public comments on their own tickets.
func (s *WorkflowService) AddComment(ctx context.Context, actor *domain.User, ticketID int64, message string, private bool) (comment *domain.Comment, err error) {
	defer func() { s.metrics.RecordWorkflow("add_comment", outcome(err)) }()

	isClient := actor.Is(domain.RoleClient)
	if !isClient {
		if err := requireAny(actor, domain.PermEditRequest, domain.PermQualityControl); err != nil {
			return nil, err
		}
	}
	if isClient && private {
		return nil, apperrors.NewPermissionDenied(string(domain.PermEditRequest))
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"message": "required"})
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if isClient && ticket.ClientID != actor.ID {
			return apperrors.NewPermissionDenied(string(domain.PermEditRequest))
		}
		comment = &domain.Comment{
			TicketID: ticket.ID,
			AuthorID: actor.ID,
			Message:  message,
			Private:  private,
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return apperrors.MapError(err)
		}
		comment.AuthorName = actor.FullName
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventCommentAdded,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload: events.CommentAddedPayload{
				CommentID: comment.ID,
				AuthorID:  actor.ID,
				MasterID:  ticket.MasterID,
				Private:   private,
				Preview:   stringPreview(message, 120),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns the comments the actor may read, oldest first.
func (s *WorkflowService) ListComments(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.Comment, error) {
	if _, err := s.readable(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticketID, !actor.Is(domain.RoleClient))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	visible := comments[:0]
	for _, c := range comments {
		if c.VisibleTo(actor) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// AddPart records parts consumed by a ticket. Repeated additions accumulate.
func (s *WorkflowService) AddPart(ctx context.Context, actor *domain.User, ticketID, partID int64, quantity int) (usage *domain.PartUsage, err error) {
	defer func() { s.metrics.RecordWorkflow("add_part", outcome(err)) }()

	if err := requireAny(actor, domain.PermEditRequest); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"quantity": "gte=1"})
	}

	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ticket, err := s.tickets.GetByID(ctx, ticketID)
		if err != nil {
			return lookupErr(err, "ticket", ticketID)
		}
		if err := ensureMasterOwns(actor, ticket); err != nil {
			return err
		}
		part, err := s.parts.GetByID(ctx, partID)
		if err != nil {
			return lookupErr(err, "part", partID)
		}
		usage = &domain.PartUsage{
			TicketID:   ticket.ID,
			PartID:     part.ID,
			Quantity:   quantity,
			UsedDate:   domain.DateOf(now),
			PartName:   part.Name,
			VendorCode: part.VendorCode,
			Price:      part.Price,
		}
		if err := s.parts.AddUsage(ctx, usage); err != nil {
			return apperrors.MapError(err)
		}
		if err := recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypePartAdded,
			nil,
			map[string]any{"part_id": part.ID, "added": quantity, "quantity": usage.Quantity},
		); err != nil {
			return err
		}
		return publish(ctx, s.dispatcher, now, events.Event{
			Type:     events.EventPartAdded,
			TicketID: ticket.ID,
			Actor:    events.ActorOf(actor),
			Payload: events.PartAddedPayload{
				PartID:   part.ID,
				Added:    quantity,
				Quantity: usage.Quantity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// ListParts returns the part usage of a ticket.
func (s *WorkflowService) ListParts(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.PartUsage, error) {
	if _, err := s.readable(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	usage, err := s.parts.ListUsage(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return usage, nil
}

// ListLowStock returns catalog parts at or below their reorder level.
func (s *WorkflowService) ListLowStock(ctx context.Context, actor *domain.User) ([]domain.Part, error) {
	if err := requireAny(actor, domain.PermViewStatistics); err != nil {
		return nil, err
	}
	parts, err := s.parts.ListLowStock(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return parts, nil
}

// RegisterPart adds a part to the catalog. Managers only.
func (s *WorkflowService) RegisterPart(ctx context.Context, actor *domain.User, draft PartDraft) (*domain.Part, error) {
	if !actor.Is(domain.RoleManager) {
		return nil, apperrors.NewPermissionDenied("manage_parts")
	}
	trimAll(&draft.Name, &draft.VendorCode, &draft.Supplier)
	draft.VendorCode = strings.ToUpper(draft.VendorCode)
	if err := validateStruct(s.validate, draft); err != nil {
		return nil, err
	}
	part := &domain.Part{
		Name:        draft.Name,
		VendorCode:  draft.VendorCode,
		Price:       draft.Price,
		Quantity:    draft.Quantity,
		MinQuantity: draft.MinQuantity,
		Supplier:    draft.Supplier,
	}
	if err := s.parts.Create(ctx, part); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("vendor code already registered", map[string]any{"vendor_code": part.VendorCode})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("part registered", zap.Int64("part_id", part.ID), zap.Int64("actor_id", actor.ID))
	return part, nil
}

func (s *WorkflowService) details(ticket domain.Ticket) TicketDetails {
	now := s.now()
	return TicketDetails{
		Ticket:          ticket,
		ElapsedDays:     ticket.ElapsedDays(now),
		ProgressPercent: ticket.ProgressPercent(),
		Overdue:         ticket.IsOverdue(now, s.threshold),
	}
}

// readable loads a ticket the actor may see.
func (s *WorkflowService) readable(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	if !canRead(actor) {
		return nil, apperrors.NewPermissionDenied("view_request")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, lookupErr(err, "ticket", ticketID)
	}
	if actor.Is(domain.RoleClient) && ticket.ClientID != actor.ID {
		return nil, apperrors.NewPermissionDenied("view_request")
	}
	return ticket, nil
}

func (s *WorkflowService) loadMaster(ctx context.Context, masterID int64) (*domain.User, error) {
	master, err := s.users.GetByID(ctx, masterID)
	if err != nil {
		return nil, lookupErr(err, "master", masterID)
	}
	return master, checkMaster(master)
}

func checkMaster(master *domain.User) error {
	if master.Role != domain.RoleMaster {
		return apperrors.NewConsistencyViolation("user is not a master", map[string]any{"master_id": master.ID, "role": master.Role})
	}
	if !master.Active {
		return apperrors.NewValidationError("master is inactive", map[string]any{"master_id": "active"})
	}
	return nil
}

func canRead(actor *domain.User) bool {
	return actor != nil && actor.Role.Valid()
}

// ensureMasterOwns restricts masters to the tickets assigned to them.
func ensureMasterOwns(actor *domain.User, ticket *domain.Ticket) error {
	if !actor.Is(domain.RoleMaster) {
		return nil
	}
	if ticket.MasterID == nil || *ticket.MasterID != actor.ID {
		return apperrors.NewPermissionDenied(string(domain.PermEditRequest))
	}
	return nil
}
