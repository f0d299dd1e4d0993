package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository/memstore"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	tokens := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tokens, store.Users())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var domainErr *apperrors.DomainError
			if errors.As(err, &domainErr) {
				return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	app.Get("/stats", mw.Handle, RequirePermission(domain.PermViewStatistics), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).FullName)
	})
	return app, tokens, store
}

func createUser(t *testing.T, store *memstore.Store, login string, role domain.Role, active bool) *domain.User {
	t.Helper()
	user := &domain.User{FullName: login, Login: login, Role: role, Active: active}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func TestMiddlewareAuthorizesByPermission(t *testing.T) {
	app, tokens, store := newTestApp(t)
	operator := createUser(t, store, "operator", domain.RoleOperator, true)
	master := createUser(t, store, "master", domain.RoleMaster, true)
	disabled := createUser(t, store, "gone", domain.RoleManager, false)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: fiber.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", status: fiber.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", status: fiber.StatusUnauthorized},
		{name: "permitted role", header: bearer(t, tokens, operator), status: fiber.StatusOK},
		{name: "role without permission", header: bearer(t, tokens, master), status: fiber.StatusForbidden},
		{name: "inactive user", header: bearer(t, tokens, disabled), status: fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/stats", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestMiddlewareRejectsRoleMismatch(t *testing.T) {
	app, tokens, store := newTestApp(t)
	user := createUser(t, store, "operator", domain.RoleOperator, true)
	forged := *user
	forged.Role = domain.RoleManager

	req := httptest.NewRequest("GET", "/stats", nil)
	req.Header.Set("Authorization", bearer(t, tokens, &forged))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func bearer(t *testing.T, tokens *TokenManager, user *domain.User) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(user)
	require.NoError(t, err)
	return "Bearer " + token
}
