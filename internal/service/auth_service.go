package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/config"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/repository"
	apperrors "github.com/spec-kit/repair-service/pkg/util/errorutil"
)

// AuthService coordinates accounts, login and password changes.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	validate   *validator.Validate
	logger     *zap.Logger
	cfg        config.AuthConfig
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// NewUser describes an account to register.
type NewUser struct {
	FullName string      `json:"full_name" validate:"required,max=100"`
	Phone    string      `json:"phone" validate:"required,phone"`
	Login    string      `json:"login" validate:"required,min=3,max=50"`
	Password string      `json:"password" validate:"required"`
	Role     domain.Role `json:"role" validate:"required,role"`
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		validate:   newValidator(),
		logger:     nopIfNil(deps.Logger),
		cfg:        cfg.Auth,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Register creates an account. Managers may create any role, operators only clients.
func (s *AuthService) Register(ctx context.Context, actor *domain.User, input NewUser) (*domain.User, error) {
	switch {
	case actor.Is(domain.RoleManager):
	case actor.Is(domain.RoleOperator) && input.Role == domain.RoleClient:
	default:
		return nil, apperrors.NewPermissionDenied("register_user")
	}
	return s.createUser(ctx, input)
}

func (s *AuthService) createUser(ctx context.Context, input NewUser) (*domain.User, error) {
	trimAll(&input.FullName, &input.Phone, &input.Login)
	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}
	if err := checkPasswordPolicy(input.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		FullName:     input.FullName,
		Phone:        input.Phone,
		Login:        input.Login,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("login already taken", map[string]any{"login": input.Login})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login authenticates by login and password and issues a session token.
func (s *AuthService) Login(ctx context.Context, login, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !user.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return lookupErr(err, "user", actor.ID)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	if err := checkPasswordPolicy(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("password changed", zap.Int64("user_id", user.ID))
	return nil
}

// EnsureBootstrapManager creates the configured manager account when it is missing.
func (s *AuthService) EnsureBootstrapManager(ctx context.Context) (*domain.User, error) {
	login := strings.TrimSpace(s.cfg.BootstrapLogin)
	if login == "" {
		return nil, nil
	}
	existing, err := s.users.GetByLogin(ctx, login)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	if err := checkPasswordPolicy(s.cfg.BootstrapPassword); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(s.cfg.BootstrapPassword, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		FullName:     s.cfg.BootstrapFullName,
		Login:        login,
		PasswordHash: hash,
		Role:         domain.RoleManager,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("bootstrap manager created", zap.Int64("user_id", user.ID), zap.String("login", login))
	return user, nil
}

// ListUsers returns the active users of a role for assignment pickers.
func (s *AuthService) ListUsers(ctx context.Context, actor *domain.User, role domain.Role) ([]domain.User, error) {
	if err := requireAny(actor, domain.PermAssignMaster, domain.PermQualityControl, domain.PermCreateRequest); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"role": "role"})
	}
	users, err := s.users.ListByRole(ctx, role, true)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func checkPasswordPolicy(password string) error {
	problems := domain.PasswordProblems(password)
	if len(problems) == 0 {
		return nil
	}
	return apperrors.NewValidationError("password does not meet the policy", map[string]any{"password": strings.Join(problems, ",")})
}
