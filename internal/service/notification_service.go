package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/cache"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const defaultInboxLimit = 50

// NotificationService keeps user inboxes and turns workflow events into messages.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	dispatcher    events.Dispatcher
	unread        cache.UnreadCounter
	logger        *zap.Logger
	metrics       *observability.Metrics
	cfg           config.NotificationConfig
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Dispatcher       events.Dispatcher
	UnreadCache      cache.UnreadCounter
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	Config           config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		dispatcher:    deps.Dispatcher,
		unread:        deps.UnreadCache,
		logger:        nopIfNil(deps.Logger),
		metrics:       deps.Metrics,
		cfg:           deps.Config,
	}
}

// Notify appends an unread message to the user's inbox.
func (n *NotificationService) Notify(ctx context.Context, userID int64, message string, kind domain.NotificationType) (*domain.Notification, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"message": "required"})
	}
	if !kind.Valid() {
		kind = domain.NotificationInfo
	}
	notification := &domain.Notification{
		UserID:  userID,
		Message: message,
		Type:    kind,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("create notification for user %d: %w", userID, err)
	}
	n.invalidate(ctx, userID)
	n.metrics.RecordNotification(string(kind))
	return notification, nil
}

// MarkRead flags a notification of userID as read.
func (n *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) error {
	notification, err := n.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return lookupErr(err, "notification", notificationID)
	}
	if notification.UserID != userID {
		return apperrors.NewPermissionDenied("notification_owner")
	}
	if notification.Read {
		return nil
	}
	if err := n.notifications.MarkRead(ctx, notificationID); err != nil {
		return lookupErr(err, "notification", notificationID)
	}
	n.invalidate(ctx, userID)
	return nil
}

// List returns the newest notifications of the user.
func (n *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	limit := n.cfg.InboxLimit
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	list, err := n.notifications.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// UnreadCount returns the unread badge value, served from cache when possible.
func (n *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	if n.unread != nil {
		count, ok, err := n.unread.Get(ctx, userID)
		if err != nil {
			n.logger.Warn("unread cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		} else if ok {
			return count, nil
		}
	}
	count, err := n.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if n.unread != nil {
		if err := n.unread.Set(ctx, userID, count); err != nil {
			n.logger.Warn("unread cache write failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return count, nil
}

func (n *NotificationService) invalidate(ctx context.Context, userID int64) {
	if n.unread == nil {
		return
	}
	repository.AfterCommit(ctx, func() {
		if err := n.unread.Invalidate(context.WithoutCancel(ctx), userID); err != nil {
			n.logger.Warn("unread cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	})
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventMasterAssigned, n.handleMasterAssigned)
	n.dispatcher.Subscribe(events.EventDeadlineExtended, n.handleDeadlineExtended)
	n.dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
	n.dispatcher.Subscribe(events.EventOverdueDigest, n.handleOverdueDigest)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	msg := fmt.Sprintf("Создана новая заявка #%d", event.TicketID)
	return n.notifyMasterOrFallback(ctx, payload.MasterID, msg, domain.NotificationInfo)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	kind := domain.NotificationInfo
	if payload.NewStatus == domain.StatusReady {
		kind = domain.NotificationSuccess
	}
	msg := fmt.Sprintf("Заявка #%d: статус изменен на \"%s\"", event.TicketID, payload.NewStatus)
	_, err := n.Notify(ctx, payload.ClientID, msg, kind)
	return err
}

func (n *NotificationService) handleMasterAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.MasterAssignedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	msg := fmt.Sprintf("Вам назначена заявка #%d", event.TicketID)
	_, err := n.Notify(ctx, payload.NewMasterID, msg, domain.NotificationInfo)
	return err
}

func (n *NotificationService) handleDeadlineExtended(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.DeadlineExtendedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	msg := fmt.Sprintf("Срок заявки #%d продлен на %d дней", event.TicketID, payload.ExtraDays)
	return n.notifyMasterOrFallback(ctx, payload.MasterID, msg, domain.NotificationWarning)
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.MasterID == nil || *payload.MasterID == payload.AuthorID {
		return nil
	}
	msg := fmt.Sprintf("Новый комментарий к заявке #%d: %s", event.TicketID, payload.Preview)
	_, err := n.Notify(ctx, *payload.MasterID, msg, domain.NotificationInfo)
	return err
}

func (n *NotificationService) handleOverdueDigest(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OverdueDigestPayload)
	if !ok {
		return unexpectedPayload(event)
	}
	if payload.Count == 0 {
		return nil
	}
	msg := fmt.Sprintf("Просроченных заявок: %d (более %d дней)", payload.Count, payload.Threshold)
	return n.notifyRoles(ctx, domain.RolesWith(domain.PermQualityControl), msg, domain.NotificationWarning)
}

// notifyMasterOrFallback delivers to the master, or to every active user of
// the configured fallback role when the ticket has none.
func (n *NotificationService) notifyMasterOrFallback(ctx context.Context, masterID *int64, message string, kind domain.NotificationType) error {
	if masterID != nil {
		_, err := n.Notify(ctx, *masterID, message, kind)
		return err
	}
	if n.cfg.FallbackRole == "" {
		n.logger.Debug("no master and no fallback role; notification dropped", zap.String("message", message))
		return nil
	}
	role := domain.Role(n.cfg.FallbackRole)
	if !role.Valid() {
		n.logger.Warn("unknown fallback role; notification dropped", zap.String("role", n.cfg.FallbackRole))
		return nil
	}
	return n.notifyRoles(ctx, []domain.Role{role}, message, kind)
}

func (n *NotificationService) notifyRoles(ctx context.Context, roles []domain.Role, message string, kind domain.NotificationType) error {
	for _, role := range roles {
		users, err := n.users.ListByRole(ctx, role, true)
		if err != nil {
			return fmt.Errorf("list %s users: %w", role, err)
		}
		for _, u := range users {
			if _, err := n.Notify(ctx, u.ID, message, kind); err != nil {
				return err
			}
		}
	}
	return nil
}

func unexpectedPayload(event events.Event) error {
	return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
}

