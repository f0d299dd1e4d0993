package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository/memstore"
)

var baseTime = time.Date(2024, 5, 20, 10, 30, 0, 0, time.UTC)

type fixture struct {
	ctx           context.Context
	clock         time.Time
	store         *memstore.Store
	dispatcher    events.Dispatcher
	unread        *fakeUnread
	notifications *NotificationService
	workflow      *WorkflowService
	assignment    *AssignmentService
	statistics    *StatisticsService
	auth          *AuthService
}

type fixtureOption func(*config.Config)

func withFallbackRole(role string) fixtureOption {
	return func(cfg *config.Config) { cfg.Notification.FallbackRole = role }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 15,
			BcryptCost:            bcrypt.MinCost,
		},
		Workflow:     config.WorkflowConfig{OverdueThresholdDays: 7},
		Notification: config.NotificationConfig{FallbackRole: string(domain.RoleManager), InboxLimit: 50},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{ctx: context.Background(), clock: baseTime, unread: newFakeUnread()}
	now := func() time.Time { return f.clock }
	f.store = memstore.New().WithClock(now)
	f.dispatcher = events.NewInMemoryDispatcher()

	f.notifications = NewNotificationService(NotificationDependencies{
		NotificationRepo: f.store.Notifications(),
		UserRepo:         f.store.Users(),
		Dispatcher:       f.dispatcher,
		UnreadCache:      f.unread,
		Config:           cfg.Notification,
	})
	f.notifications.RegisterHandlers()

	f.workflow = NewWorkflowService(WorkflowDependencies{
		Transactor:  f.store.Transactor(),
		TicketRepo:  f.store.Tickets(),
		UserRepo:    f.store.Users(),
		CommentRepo: f.store.Comments(),
		PartRepo:    f.store.Parts(),
		HistoryRepo: f.store.History(),
		Dispatcher:  f.dispatcher,
		Now:         now,
		OverdueDays: cfg.Workflow.OverdueThresholdDays,
	})
	f.assignment = NewAssignmentService(AssignmentDependencies{
		Transactor:  f.store.Transactor(),
		TicketRepo:  f.store.Tickets(),
		UserRepo:    f.store.Users(),
		HistoryRepo: f.store.History(),
		Dispatcher:  f.dispatcher,
		Now:         now,
		OverdueDays: cfg.Workflow.OverdueThresholdDays,
	})
	f.statistics = NewStatisticsService(f.store.Tickets(), cfg.Workflow.OverdueThresholdDays, now)
	f.auth = NewAuthService(cfg, AuthDependencies{UserRepo: f.store.Users()})
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) user(t *testing.T, role domain.Role, name string) *domain.User {
	t.Helper()
	u := &domain.User{FullName: name, Login: name, Phone: "+79990000000", Role: role, Active: true}
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u
}

func (f *fixture) draft(client *domain.User) TicketDraft {
	return TicketDraft{
		ApplianceType:      "Стиральная машина",
		ApplianceModel:     "LG F1296",
		ProblemDescription: "Не сливает воду",
		ClientID:           client.ID,
		ClientPhone:        "+7 (999) 123-45-67",
	}
}

func (f *fixture) ticket(t *testing.T, actor, client *domain.User, master *domain.User) *domain.Ticket {
	t.Helper()
	d := f.draft(client)
	if master != nil {
		d.MasterID = &master.ID
	}
	ticket, err := f.workflow.Create(f.ctx, actor, d)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) inbox(t *testing.T, user *domain.User) []string {
	t.Helper()
	list, err := f.notifications.List(f.ctx, user.ID, false)
	require.NoError(t, err)
	messages := make([]string, 0, len(list))
	for _, n := range list {
		messages = append(messages, n.Message)
	}
	return messages
}

type fakeUnread struct {
	counts      map[int64]int
	invalidated []int64
	failGet     bool
}

func newFakeUnread() *fakeUnread {
	return &fakeUnread{counts: map[int64]int{}}
}

func (c *fakeUnread) Get(_ context.Context, userID int64) (int, bool, error) {
	if c.failGet {
		return 0, false, errors.New("cache down")
	}
	count, ok := c.counts[userID]
	return count, ok, nil
}

func (c *fakeUnread) Set(_ context.Context, userID int64, count int) error {
	c.counts[userID] = count
	return nil
}

func (c *fakeUnread) Invalidate(_ context.Context, userID int64) error {
	delete(c.counts, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}
