package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

func TestNotify(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, domain.RoleMaster, "master")

	n, err := f.notifications.Notify(f.ctx, user.ID, "  Проверьте склад  ", "")
	require.NoError(t, err)
	assert.Equal(t, "Проверьте склад", n.Message)
	assert.Equal(t, domain.NotificationInfo, n.Type)
	assert.False(t, n.Read)
	assert.Equal(t, baseTime, n.CreatedAt)

	n, err = f.notifications.Notify(f.ctx, user.ID, "Срочно", domain.NotificationError)
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationError, n.Type)

	_, err = f.notifications.Notify(f.ctx, user.ID, "   ", domain.NotificationInfo)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.notifications.Notify(f.ctx, 99999, "никому", domain.NotificationInfo)
	assert.Error(t, err)

	assert.Equal(t, []int64{user.ID, user.ID}, f.unread.invalidated)
}

func TestNotifyInvalidatesCacheAfterCommit(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, domain.RoleMaster, "master")
	f.unread.counts[user.ID] = 0

	err := f.store.Transactor().RunInTx(f.ctx, func(ctx context.Context) error {
		_, err := f.notifications.Notify(ctx, user.ID, "Новая заявка", domain.NotificationInfo)
		require.NoError(t, err)
		assert.Empty(t, f.unread.invalidated)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{user.ID}, f.unread.invalidated)

	err = f.store.Transactor().RunInTx(f.ctx, func(ctx context.Context) error {
		_, err := f.notifications.Notify(ctx, user.ID, "Откат", domain.NotificationInfo)
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, []int64{user.ID}, f.unread.invalidated)

	count, err := f.notifications.UnreadCount(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, domain.RoleMaster, "owner")
	other := f.user(t, domain.RoleMaster, "other")
	n, err := f.notifications.Notify(f.ctx, owner.ID, "Вам назначена заявка #1", domain.NotificationInfo)
	require.NoError(t, err)

	err = f.notifications.MarkRead(f.ctx, other.ID, n.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
	err = f.notifications.MarkRead(f.ctx, owner.ID, 4242)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	require.NoError(t, f.notifications.MarkRead(f.ctx, owner.ID, n.ID))
	require.NoError(t, f.notifications.MarkRead(f.ctx, owner.ID, n.ID))

	unread, err := f.notifications.List(f.ctx, owner.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
	all, err := f.notifications.List(f.ctx, owner.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Read)
}

func TestListKeepsNewestFifty(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, domain.RoleOperator, "operator")
	for i := 1; i <= 55; i++ {
		_, err := f.notifications.Notify(f.ctx, user.ID, fmt.Sprintf("сообщение %d", i), domain.NotificationInfo)
		require.NoError(t, err)
		f.advance(time.Minute)
	}

	list, err := f.notifications.List(f.ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 50)
	assert.Equal(t, "сообщение 55", list[0].Message)
	assert.Equal(t, "сообщение 6", list[49].Message)
}

func TestUnreadCountUsesCache(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, domain.RoleOperator, "operator")
	_, err := f.notifications.Notify(f.ctx, user.ID, "первое", domain.NotificationInfo)
	require.NoError(t, err)

	count, err := f.notifications.UnreadCount(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.unread.counts[user.ID])

	f.unread.counts[user.ID] = 7
	count, err = f.notifications.UnreadCount(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	_, err = f.notifications.Notify(f.ctx, user.ID, "второе", domain.NotificationInfo)
	require.NoError(t, err)
	count, err = f.notifications.UnreadCount(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUnreadCountFallsBackWhenCacheFails(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, domain.RoleOperator, "operator")
	_, err := f.notifications.Notify(f.ctx, user.ID, "первое", domain.NotificationInfo)
	require.NoError(t, err)

	f.unread.failGet = true
	count, err := f.notifications.UnreadCount(f.ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInvalidFallbackRoleDropsNotification(t *testing.T) {
	f := newFixture(t, withFallbackRole("Директор"))
	manager := f.user(t, domain.RoleManager, "manager")
	client := f.user(t, domain.RoleClient, "client")

	ticket := f.ticket(t, manager, client, nil)
	assert.NotZero(t, ticket.ID)
	assert.Empty(t, f.inbox(t, manager))
}

func TestFallbackReachesEveryActiveUserOfRole(t *testing.T) {
	f := newFixture(t, withFallbackRole(string(domain.RoleOperator)))
	first := f.user(t, domain.RoleOperator, "first")
	second := f.user(t, domain.RoleOperator, "second")
	retired := f.user(t, domain.RoleOperator, "retired")
	retired.Active = false
	require.NoError(t, f.store.Users().Update(f.ctx, retired))
	client := f.user(t, domain.RoleClient, "client")

	ticket := f.ticket(t, first, client, nil)
	want := []string{fmt.Sprintf("Создана новая заявка #%d", ticket.ID)}
	assert.Equal(t, want, f.inbox(t, first))
	assert.Equal(t, want, f.inbox(t, second))
	assert.Empty(t, f.inbox(t, retired))
}
