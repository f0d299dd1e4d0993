package service

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// StatisticsService aggregates the dashboard figures.
type StatisticsService struct {
	tickets   repository.TicketRepository
	now       func() time.Time
	threshold int
}

// NewStatisticsService creates the service.
func NewStatisticsService(tickets repository.TicketRepository, overdueDays int, now func() time.Time) *StatisticsService {
	if overdueDays <= 0 {
		overdueDays = domain.DefaultOverdueThresholdDays
	}
	return &StatisticsService{tickets: tickets, now: clockOrNow(now), threshold: overdueDays}
}

// Summary computes the statistics over every ticket in one scan.
func (s *StatisticsService) Summary(ctx context.Context, actor *domain.User) (*domain.Statistics, error) {
	if err := requireAny(actor, domain.PermViewStatistics); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return summarize(tickets, s.now(), s.threshold), nil
}

func summarize(tickets []domain.Ticket, now time.Time, threshold int) *domain.Statistics {
	stats := &domain.Statistics{ByStatus: make(map[domain.TicketStatus]int, len(domain.Statuses))}
	for _, status := range domain.Statuses {
		stats.ByStatus[status] = 0
	}

	clients := map[int64]struct{}{}
	byType := map[string]int{}
	byMonth := map[string]int{}
	byMaster := map[int64]*domain.MasterLoad{}
	repairDays := 0

	for _, t := range tickets {
		stats.Total++
		stats.ByStatus[t.Status]++
		clients[t.ClientID] = struct{}{}
		byType[t.ApplianceType]++
		byMonth[t.StartDate.Format("2006-01")]++

		completed := t.Status.Terminal()
		if completed {
			stats.Completed++
			stats.TotalRevenue += t.ActualCost
			repairDays += t.ElapsedDays(now)
		} else {
			stats.Active++
		}
		if t.IsOverdue(now, threshold) {
			stats.Overdue++
		}

		if t.HasMaster() {
			load, ok := byMaster[*t.MasterID]
			if !ok {
				load = &domain.MasterLoad{MasterID: *t.MasterID, Name: t.MasterName}
				byMaster[*t.MasterID] = load
			}
			load.Total++
			if completed {
				load.Completed++
			} else {
				load.Active++
			}
		}
	}

	if stats.Completed > 0 {
		stats.AvgRepairDays = float64(repairDays) / float64(stats.Completed)
	}
	stats.UniqueClients = len(clients)

	stats.ByApplianceType = sortedCounts(byType, false)
	stats.ByMonth = sortedCounts(byMonth, true)

	stats.ByMaster = make([]domain.MasterLoad, 0, len(byMaster))
	for _, load := range byMaster {
		stats.ByMaster = append(stats.ByMaster, *load)
	}
	sort.Slice(stats.ByMaster, func(i, j int) bool {
		if stats.ByMaster[i].Total != stats.ByMaster[j].Total {
			return stats.ByMaster[i].Total > stats.ByMaster[j].Total
		}
		return stats.ByMaster[i].MasterID < stats.ByMaster[j].MasterID
	})
	return stats
}

// sortedCounts orders by key when byKey is set, otherwise by count descending.
func sortedCounts(counts map[string]int, byKey bool) []domain.CountByKey {
	out := make([]domain.CountByKey, 0, len(counts))
	for k, c := range counts {
		out = append(out, domain.CountByKey{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if !byKey && out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
