package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/observability"
	"github.com/spec-kit/repair-service/internal/repository/memstore"
	"github.com/spec-kit/repair-service/internal/service"
)

const testPassword = "Rem0nt!2024"

type testServer struct {
	app   *fiber.App
	store *memstore.Store
	auth  *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		Auth:         config.AuthConfig{JWTSecret: "e2e-secret", AccessTokenTTLMinutes: 30, BcryptCost: bcrypt.MinCost},
		Workflow:     config.WorkflowConfig{OverdueThresholdDays: 7},
		Notification: config.NotificationConfig{FallbackRole: string(domain.RoleManager), InboxLimit: 50},
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memstore.New()
	dispatcher := events.NewInMemoryDispatcher()

	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: store.Notifications(),
		UserRepo:         store.Users(),
		Dispatcher:       dispatcher,
		Logger:           logger,
		Metrics:          metrics,
		Config:           cfg.Notification,
	})
	notifications.RegisterHandlers()
	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Transactor:  store.Transactor(),
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		CommentRepo: store.Comments(),
		PartRepo:    store.Parts(),
		HistoryRepo: store.History(),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
		OverdueDays: cfg.Workflow.OverdueThresholdDays,
	})
	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		Transactor:  store.Transactor(),
		TicketRepo:  store.Tickets(),
		UserRepo:    store.Users(),
		HistoryRepo: store.History(),
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
		OverdueDays: cfg.Workflow.OverdueThresholdDays,
	})
	statistics := service.NewStatisticsService(store.Tickets(), cfg.Workflow.OverdueThresholdDays, nil)
	authService := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: store.Users(), Logger: logger})

	app := NewApp("repair-service-test")
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("repair-service", "test", "memory", nil),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(workflow),
		Escalations:    handlers.NewEscalationHandler(assignment),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Statistics:     handlers.NewStatisticsHandler(statistics),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users()),
	})
	return &testServer{app: app, store: store, auth: authService}
}

func (s *testServer) account(t *testing.T, login string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{FullName: login, Login: login, Phone: "+79991112233", PasswordHash: hash, Role: role, Active: true}
	require.NoError(t, s.store.Users().Create(context.Background(), user))
	return user
}

func (s *testServer) login(t *testing.T, login string) string {
	t.Helper()
	status, body := s.do(t, "POST", "/auth/login", "", map[string]any{"login": login, "password": testPassword})
	require.Equal(t, fiber.StatusOK, status, string(body))
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, payload any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, body
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	srv.account(t, "manager", domain.RoleManager)
	srv.account(t, "operator", domain.RoleOperator)
	client := srv.account(t, "client", domain.RoleClient)

	operatorToken := srv.login(t, "operator")
	clientToken := srv.login(t, "client")
	managerToken := srv.login(t, "manager")

	status, body := srv.do(t, "POST", "/tickets", operatorToken, map[string]any{
		"appliance_type":      "Холодильник",
		"appliance_model":     "Atlant XM-4021",
		"problem_description": "Не морозит",
		"client_id":           client.ID,
		"client_phone":        "8 (912) 345-67-89",
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))
	var created struct {
		ID       int64               `json:"id"`
		Status   domain.TicketStatus `json:"status"`
		Priority int                 `json:"priority"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &created))
	assert.Equal(t, domain.StatusNew, created.Status)
	assert.Equal(t, 3, created.Priority)

	status, body = srv.do(t, "POST", fmt.Sprintf("/tickets/%d/status", created.ID), operatorToken,
		map[string]any{"status": string(domain.StatusReady)})
	require.Equal(t, fiber.StatusOK, status, string(body))
	var ready struct {
		CompletionDate *string `json:"completion_date"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &ready))
	require.NotNil(t, ready.CompletionDate)

	status, body = srv.do(t, "GET", "/notifications", clientToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var inbox []struct {
		Message string                  `json:"message"`
		Type    domain.NotificationType `json:"type"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, fmt.Sprintf(`Заявка #%d: статус изменен на "Готова к выдаче"`, created.ID), inbox[0].Message)
	assert.Equal(t, domain.NotificationSuccess, inbox[0].Type)

	status, body = srv.do(t, "GET", "/notifications/unread-count", managerToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var unread struct {
		Unread int `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &unread))
	assert.Equal(t, 1, unread.Unread)

	status, body = srv.do(t, "GET", fmt.Sprintf("/tickets/%d", created.ID), clientToken, nil)
	require.Equal(t, fiber.StatusOK, status, string(body))
	var details struct {
		ProgressPercent int   `json:"progress_percent"`
		Overdue         *bool `json:"overdue"`
	}
	require.NoError(t, json.Unmarshal(decode(t, body).Data, &details))
	assert.Equal(t, 100, details.ProgressPercent)
	require.NotNil(t, details.Overdue)
	assert.False(t, *details.Overdue)
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)
	srv.account(t, "operator", domain.RoleOperator)
	srv.account(t, "master", domain.RoleMaster)
	client := srv.account(t, "client", domain.RoleClient)
	operatorToken := srv.login(t, "operator")
	masterToken := srv.login(t, "master")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{name: "no token", method: "GET", path: "/tickets", status: fiber.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "bad credentials", method: "POST", path: "/auth/login", body: map[string]any{"login": "operator", "password": "wrong"}, status: fiber.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "master cannot create", method: "POST", path: "/tickets", token: masterToken, body: map[string]any{"client_id": client.ID}, status: fiber.StatusForbidden, code: "PERMISSION_DENIED"},
		{name: "validation", method: "POST", path: "/tickets", token: operatorToken, body: map[string]any{"client_id": client.ID}, status: fiber.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "unknown status", method: "POST", path: "/tickets/1/status", token: operatorToken, body: map[string]any{"status": "Закрыта"}, status: fiber.StatusUnprocessableEntity, code: "INVALID_STATUS"},
		{name: "missing ticket", method: "GET", path: "/tickets/404", token: operatorToken, status: fiber.StatusNotFound, code: "NOT_FOUND"},
		{name: "bad id", method: "GET", path: "/tickets/abc", token: operatorToken, status: fiber.StatusBadRequest, code: "VALIDATION_FAILED"},
		{name: "statistics denied", method: "GET", path: "/statistics", token: masterToken, status: fiber.StatusForbidden, code: "PERMISSION_DENIED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := srv.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, status, string(body))
			env := decode(t, body)
			require.NotNil(t, env.Error, string(body))
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = srv.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body := srv.do(t, "GET", "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), "http_requests_total")
}
