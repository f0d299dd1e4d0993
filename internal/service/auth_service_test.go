package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

const strongPassword = "Rem0nt!2024"

func newUserInput(login string, role domain.Role) NewUser {
	return NewUser{
		FullName: "Сидоров Петр",
		Phone:    "89991234567",
		Login:    login,
		Password: strongPassword,
		Role:     role,
	}
}

func TestRegisterByRole(t *testing.T) {
	f := newFixture(t)
	manager := f.user(t, domain.RoleManager, "manager")
	operator := f.user(t, domain.RoleOperator, "operator")
	master := f.user(t, domain.RoleMaster, "master")

	created, err := f.auth.Register(f.ctx, manager, newUserInput("new-master", domain.RoleMaster))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.True(t, created.Active)
	assert.NotEqual(t, strongPassword, created.PasswordHash)

	_, err = f.auth.Register(f.ctx, operator, newUserInput("walk-in", domain.RoleClient))
	require.NoError(t, err)
	_, err = f.auth.Register(f.ctx, operator, newUserInput("promoted", domain.RoleManager))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
	_, err = f.auth.Register(f.ctx, master, newUserInput("helper", domain.RoleClient))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))

	_, err = f.auth.Register(f.ctx, manager, newUserInput("new-master", domain.RoleMaster))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	manager := f.user(t, domain.RoleManager, "manager")

	cases := []struct {
		name  string
		edit  func(*NewUser)
		field string
	}{
		{name: "short login", edit: func(u *NewUser) { u.Login = "ab" }, field: "login"},
		{name: "bad phone", edit: func(u *NewUser) { u.Phone = "555" }, field: "phone"},
		{name: "unknown role", edit: func(u *NewUser) { u.Role = "Директор" }, field: "role"},
		{name: "weak password", edit: func(u *NewUser) { u.Password = "password" }, field: "password"},
		{name: "missing name", edit: func(u *NewUser) { u.FullName = " " }, field: "full_name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := newUserInput("valid-login", domain.RoleOperator)
			tc.edit(&in)
			_, err := f.auth.Register(f.ctx, manager, in)
			require.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
			assert.Contains(t, apperrors.ToDomainError(err).Details, tc.field)
		})
	}
}

func TestLoginIssuesToken(t *testing.T) {
	f := newFixture(t)
	manager := f.user(t, domain.RoleManager, "manager")
	created, err := f.auth.Register(f.ctx, manager, newUserInput("operator1", domain.RoleOperator))
	require.NoError(t, err)

	user, token, expires, err := f.auth.Login(f.ctx, " operator1 ", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, token)
	assert.True(t, expires.After(time.Now()))

	claims, err := f.auth.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, domain.RoleOperator, claims.Role)

	_, _, _, err = f.auth.Login(f.ctx, "operator1", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	_, _, _, err = f.auth.Login(f.ctx, "ghost", strongPassword)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	created.Active = false
	require.NoError(t, f.store.Users().Update(f.ctx, created))
	_, _, _, err = f.auth.Login(f.ctx, "operator1", strongPassword)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	manager := f.user(t, domain.RoleManager, "manager")
	user, err := f.auth.Register(f.ctx, manager, newUserInput("master1", domain.RoleMaster))
	require.NoError(t, err)

	err = f.auth.ChangePassword(f.ctx, user, "nope", "N3w!Password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
	err = f.auth.ChangePassword(f.ctx, user, strongPassword, "short")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	err = f.auth.ChangePassword(f.ctx, nil, strongPassword, "N3w!Password")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	require.NoError(t, f.auth.ChangePassword(f.ctx, user, strongPassword, "N3w!Password"))
	_, _, _, err = f.auth.Login(f.ctx, "master1", "N3w!Password")
	assert.NoError(t, err)
	_, _, _, err = f.auth.Login(f.ctx, "master1", strongPassword)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestEnsureBootstrapManager(t *testing.T) {
	f := newFixture(t)

	none, err := f.auth.EnsureBootstrapManager(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	svc := NewAuthService(config.Config{Auth: config.AuthConfig{
		JWTSecret:         "secret",
		BcryptCost:        bcrypt.MinCost,
		BootstrapLogin:    "admin",
		BootstrapPassword: strongPassword,
		BootstrapFullName: "Администратор",
	}}, AuthDependencies{UserRepo: f.store.Users()})

	first, err := svc.EnsureBootstrapManager(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, domain.RoleManager, first.Role)

	again, err := svc.EnsureBootstrapManager(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, _, _, err = svc.Login(f.ctx, "admin", strongPassword)
	assert.NoError(t, err)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	operator := f.user(t, domain.RoleOperator, "operator")
	client := f.user(t, domain.RoleClient, "client")
	f.user(t, domain.RoleMaster, "m1")
	f.user(t, domain.RoleMaster, "m2")

	masters, err := f.auth.ListUsers(f.ctx, operator, domain.RoleMaster)
	require.NoError(t, err)
	assert.Len(t, masters, 2)

	_, err = f.auth.ListUsers(f.ctx, operator, "Директор")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.auth.ListUsers(f.ctx, client, domain.RoleMaster)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
}
