package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const day = 24 * time.Hour

func TestExtendDeadline(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	master := f.user(t, domain.RoleMaster, "master")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	ticket := f.ticket(t, operator, client, master)

	f.advance(10 * day)
	extended, err := f.assignment.ExtendDeadline(f.ctx, qm, ticket.ID, 3, "  ждем плату  ")
	require.NoError(t, err)

	require.NotNil(t, extended.ExtendedDeadline)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), *extended.ExtendedDeadline)
	require.NotNil(t, extended.QualityManagerID)
	assert.Equal(t, qm.ID, *extended.QualityManagerID)
	assert.Equal(t, "[2024-05-30 10:30] Продлено на 3 дней. Причина: ждем плату", extended.Notes)

	f.advance(time.Hour)
	_, err = f.assignment.ExtendDeadline(f.ctx, qm, ticket.ID, 2, "повторно")
	require.NoError(t, err)
	stored, err := f.store.Tickets().GetByID(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-05-30 10:30] Продлено на 3 дней. Причина: ждем плату\n[2024-05-30 11:30] Продлено на 2 дней. Причина: повторно",
		stored.Notes)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *stored.ExtendedDeadline)

	assert.Equal(t, []string{
		fmt.Sprintf("Срок заявки #%d продлен на 2 дней", ticket.ID),
		fmt.Sprintf("Срок заявки #%d продлен на 3 дней", ticket.ID),
		fmt.Sprintf("Создана новая заявка #%d", ticket.ID),
	}, f.inbox(t, master))
	list, err := f.notifications.List(f.ctx, master.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationWarning, list[0].Type)

	history, err := f.store.History().ListByTicket(f.ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeDeadline, history[0].ChangeType)
}

func TestExtendDeadlineValidation(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	ticket := f.ticket(t, operator, client, nil)

	_, err := f.assignment.ExtendDeadline(f.ctx, qm, ticket.ID, 0, " ")
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "extra_days")
	assert.Contains(t, details, "reason")

	_, err = f.assignment.ExtendDeadline(f.ctx, operator, ticket.ID, 3, "причина")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))

	_, err = f.assignment.ExtendDeadline(f.ctx, qm, 4040, 3, "причина")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	stored, err := f.store.Tickets().GetByID(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ExtendedDeadline)
	assert.Empty(t, stored.Notes)
}

func TestExtendDeadlineWithoutMasterOrFallback(t *testing.T) {
	f := newFixture(t, withFallbackRole(""))
	manager := f.user(t, domain.RoleManager, "manager")
	client := f.user(t, domain.RoleClient, "client")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	ticket := f.ticket(t, manager, client, nil)

	_, err := f.assignment.ExtendDeadline(f.ctx, qm, ticket.ID, 5, "клиент в отпуске")
	require.NoError(t, err)
	assert.Empty(t, f.inbox(t, manager))
	assert.Empty(t, f.inbox(t, qm))
}

func TestAssignMaster(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	first := f.user(t, domain.RoleMaster, "first")
	second := f.user(t, domain.RoleMaster, "second")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	ticket := f.ticket(t, operator, client, first)

	byOperator, err := f.assignment.AssignMaster(f.ctx, operator, ticket.ID, second.ID, "перегружен")
	require.NoError(t, err)
	assert.Equal(t, second.ID, *byOperator.MasterID)
	assert.Equal(t, "second", byOperator.MasterName)
	assert.Nil(t, byOperator.QualityManagerID)
	assert.Equal(t, "[2024-05-20 10:30] Назначен новый мастер. Причина: перегружен", byOperator.Notes)
	assert.Equal(t, []string{fmt.Sprintf("Вам назначена заявка #%d", ticket.ID)}, f.inbox(t, second))

	byQM, err := f.assignment.AssignMaster(f.ctx, qm, ticket.ID, first.ID, "возврат")
	require.NoError(t, err)
	require.NotNil(t, byQM.QualityManagerID)
	assert.Equal(t, qm.ID, *byQM.QualityManagerID)

	history, err := f.assignment.History(f.ctx, qm, ticket.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeMaster, history[0].ChangeType)
	assert.Equal(t, first.ID, history[0].OldValue["master_id"])
	assert.Equal(t, second.ID, history[0].NewValue["master_id"])
}

func TestAssignMasterErrors(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	master := f.user(t, domain.RoleMaster, "master")
	ticket := f.ticket(t, operator, client, nil)

	_, err := f.assignment.AssignMaster(f.ctx, operator, ticket.ID, master.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.assignment.AssignMaster(f.ctx, master, ticket.ID, master.ID, "сам")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
	_, err = f.assignment.AssignMaster(f.ctx, operator, ticket.ID, client.ID, "клиент")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConsistency))
	_, err = f.assignment.AssignMaster(f.ctx, operator, ticket.ID, 8080, "нет такого")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	_, err = f.assignment.AssignMaster(f.ctx, operator, 8080, master.ID, "нет заявки")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	stored, err := f.store.Tickets().GetByID(f.ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.MasterID)
	assert.Empty(t, stored.Notes)
}

func TestAddNote(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	ticket := f.ticket(t, operator, client, nil)

	noted, err := f.assignment.AddNote(f.ctx, qm, ticket.ID, "Проверить качество пайки")
	require.NoError(t, err)
	assert.Equal(t, "[2024-05-20 10:30] Проверить качество пайки", noted.Notes)
	assert.Equal(t, qm.ID, *noted.QualityManagerID)

	_, err = f.assignment.AddNote(f.ctx, qm, ticket.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.assignment.AddNote(f.ctx, operator, ticket.ID, "заметка")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
}

func TestListOverdue(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	master := f.user(t, domain.RoleMaster, "master")

	oldest := f.ticket(t, operator, client, nil)
	f.advance(2 * day)
	older := f.ticket(t, operator, client, nil)
	done := f.ticket(t, operator, client, nil)
	_, err := f.workflow.Transition(f.ctx, operator, done.ID, string(domain.StatusReady), nil)
	require.NoError(t, err)
	f.advance(3 * day)
	fresh := f.ticket(t, operator, client, nil)

	f.advance(5 * day)
	overdue, err := f.assignment.ListOverdue(f.ctx, qm, 0)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, oldest.ID, overdue[0].Ticket.ID)
	assert.Equal(t, 10, overdue[0].ElapsedDays)
	assert.Equal(t, older.ID, overdue[1].Ticket.ID)
	assert.Equal(t, 8, overdue[1].ElapsedDays)

	all, err := f.assignment.ListOverdue(f.ctx, operator, 4)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, fresh.ID, all[2].Ticket.ID)

	exact, err := f.assignment.ListOverdue(f.ctx, qm, 8)
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, oldest.ID, exact[0].Ticket.ID)

	_, err = f.assignment.ListOverdue(f.ctx, master, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
}

func TestPublishOverdueDigest(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	f.ticket(t, operator, client, nil)

	count, err := f.assignment.PublishOverdueDigest(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.inbox(t, qm))

	f.advance(9 * day)
	count, err = f.assignment.PublishOverdueDigest(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"Просроченных заявок: 1 (более 7 дней)"}, f.inbox(t, qm))
	assert.Empty(t, f.inbox(t, operator))
}

func TestHistoryRequiresAccess(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	ticket := f.ticket(t, operator, client, nil)

	_, err := f.assignment.History(f.ctx, client, ticket.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
	_, err = f.assignment.History(f.ctx, operator, 31337)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	entries, err := f.assignment.History(f.ctx, operator, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
