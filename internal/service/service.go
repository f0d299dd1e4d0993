package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// auditTimeLayout is the timestamp prefix of lines appended to ticket notes.
const auditTimeLayout = "2006-01-02 15:04"

func auditLine(at time.Time, text string) string {
	return fmt.Sprintf("[%s] %s", at.Format(auditTimeLayout), text)
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// requireAny returns PERMISSION_DENIED unless actor holds one of perms.
func requireAny(actor *domain.User, perms ...domain.Permission) error {
	if actor.CanAny(perms...) {
		return nil
	}
	return apperrors.NewPermissionDenied(string(perms[0]))
}

// lookupErr turns a repository miss into NOT_FOUND for resource.
func lookupErr(err error, resource string, id int64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{resource + "_id": id})
	}
	return apperrors.MapError(err)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, now time.Time, event events.Event) error {
	if dispatcher == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	return dispatcher.Publish(ctx, event)
}

func recordHistory(ctx context.Context, repo repository.TicketHistoryRepository, actor *domain.User, ticketID int64, change domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if repo == nil {
		return nil
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actor != nil {
		id := actor.ID
		entry.ChangedByID = &id
	}
	return repo.Create(ctx, entry)
}

// outcome labels a workflow metric sample.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.ToDomainError(err).Code
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func idPtr(id int64) *int64 {
	return &id
}

func idValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
