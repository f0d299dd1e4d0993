package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// RequirePermission lets the request through when the caller holds any of perms.
func RequirePermission(perms ...domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(perms) == 0 || user.CanAny(perms...) {
			return c.Next()
		}
		return apperrors.NewPermissionDenied(string(perms[0]))
	}
}

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
