package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSummarize(t *testing.T) {
	now := date(2024, 6, 20)
	masterA, masterB := int64(10), int64(20)
	doneMay := date(2024, 5, 11)
	doneJune := date(2024, 6, 4)

	tickets := []domain.Ticket{
		{ID: 1, StartDate: date(2024, 5, 1), Status: domain.StatusReady, CompletionDate: &doneMay, ApplianceType: "Холодильник", ClientID: 1, MasterID: &masterA, MasterName: "Иванов", ActualCost: 4000},
		{ID: 2, StartDate: date(2024, 6, 1), Status: domain.StatusReady, CompletionDate: &doneJune, ApplianceType: "Холодильник", ClientID: 2, MasterID: &masterA, MasterName: "Иванов", ActualCost: 1500},
		{ID: 3, StartDate: date(2024, 6, 2), Status: domain.StatusInProgress, ApplianceType: "Пылесос", ClientID: 1, MasterID: &masterB, MasterName: "Петров", ActualCost: 9999},
		{ID: 4, StartDate: date(2024, 6, 18), Status: domain.StatusNew, ApplianceType: "Холодильник", ClientID: 3},
	}

	stats := summarize(tickets, now, 7)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 3, stats.UniqueClients)
	assert.InDelta(t, 6.5, stats.AvgRepairDays, 0.0001)
	assert.InDelta(t, 5500, stats.TotalRevenue, 0.0001)

	assert.Equal(t, map[domain.TicketStatus]int{
		domain.StatusNew:          1,
		domain.StatusInProgress:   1,
		domain.StatusWaitingParts: 0,
		domain.StatusReady:        2,
	}, stats.ByStatus)
	assert.Equal(t, []domain.CountByKey{{Key: "Холодильник", Count: 3}, {Key: "Пылесос", Count: 1}}, stats.ByApplianceType)
	assert.Equal(t, []domain.CountByKey{{Key: "2024-05", Count: 1}, {Key: "2024-06", Count: 3}}, stats.ByMonth)
	assert.Equal(t, []domain.MasterLoad{
		{MasterID: masterA, Name: "Иванов", Total: 2, Completed: 2},
		{MasterID: masterB, Name: "Петров", Total: 1, Active: 1},
	}, stats.ByMaster)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := summarize(nil, date(2024, 6, 20), 7)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AvgRepairDays)
	assert.Len(t, stats.ByStatus, len(domain.Statuses))
	assert.Empty(t, stats.ByMaster)
}

func TestStatisticsSummary(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	qm := f.user(t, domain.RoleQualityManager, "qm")
	master := f.user(t, domain.RoleMaster, "master")
	f.ticket(t, operator, client, master)
	done := f.ticket(t, operator, client, nil)
	_, err := f.workflow.Transition(f.ctx, operator, done.ID, string(domain.StatusReady), nil)
	require.NoError(t, err)

	stats, err := f.statistics.Summary(f.ctx, qm)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.UniqueClients)
	require.Len(t, stats.ByMaster, 1)
	assert.Equal(t, "master", stats.ByMaster[0].Name)

	_, err = f.statistics.Summary(f.ctx, master)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
	_, err = f.statistics.Summary(f.ctx, client)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
}
