package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/repository"
	"github.com/kc-reserve/hut-api/pkg/database"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
}

type whitelistGate interface {
	Lookup(ctx context.Context, email string) (*models.WhitelistEntry, error)
}

type accessTokenIssuer interface {
	Issue(user *models.User) (string, error)
}

type sessionManager interface {
	Mint(ctx context.Context, user *models.User, meta models.ClientMeta) (string, *models.RefreshSession, error)
	VerifyAndRotate(ctx context.Context, raw string, meta models.ClientMeta) (*models.User, string, error)
	RevokeBySecret(ctx context.Context, raw string) error
}

// AuthService provides registration, login and token refresh.
type AuthService struct {
	users     authUserRepository
	whitelist whitelistGate
	tokens    accessTokenIssuer
	sessions  sessionManager
	cache     *CacheService
	tx        database.Transactor
	validator *validator.Validate
	logger    *zap.Logger

	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance. cache may be nil.
func NewAuthService(users authUserRepository, whitelist whitelistGate, tokens accessTokenIssuer, sessions sessionManager, cache *CacheService, tx database.Transactor, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)
	return &AuthService{
		users:     users,
		whitelist: whitelist,
		tokens:    tokens,
		sessions:  sessions,
		cache:     cache,
		tx:        tx,
		validator: validate,
		logger:    logger,
		dummyHash: dummy,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account for a whitelisted email and signs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta models.ClientMeta) (*models.AuthResult, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	entry, err := s.whitelist.Lookup(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	var result *models.AuthResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "email is already registered")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		displayName := trimmedOrNil(req.DisplayName)
		if displayName == nil {
			displayName = entry.DisplayName
		}
		user := &models.User{
			Email:                req.Email,
			PasswordHash:         string(hash),
			DisplayName:          displayName,
			IsAdmin:              entry.IsAdminDefault,
			IsActive:             true,
			ReceivesNotification: entry.IsAdminDefault,
		}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "email is already registered")
			}
			return err
		}

		result, err = s.signIn(ctx, user, meta)
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to register user")
	}

	s.logger.Info("user registered", zap.String("user_id", result.User.ID), zap.Bool("is_admin", result.User.IsAdmin))
	return result, nil
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest, meta models.ClientMeta) (*models.AuthResult, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var result *models.AuthResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
				return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}

		if !user.IsActive {
			return appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
		}

		result, err = s.signIn(ctx, user, meta)
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to log in")
	}
	return result, nil
}

// Refresh exchanges a refresh secret for a new access token and a rotated secret.
func (s *AuthService) Refresh(ctx context.Context, raw string, meta models.ClientMeta) (*models.AuthResult, error) {
	user, newRaw, err := s.sessions.VerifyAndRotate(ctx, raw, meta)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	return &models.AuthResult{User: *user, AccessToken: accessToken, RefreshToken: newRaw}, nil
}

// Logout revokes the session behind raw, if any.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.sessions.RevokeBySecret(ctx, raw)
}

// Me returns the current account.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies the self-service profile patch.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if req.Email != nil {
		normalized := NormalizeEmail(*req.Email)
		req.Email = &normalized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var updated *models.User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return err
		}

		if req.DisplayName != nil {
			user.DisplayName = trimmedOrNil(req.DisplayName)
		}
		if req.Email != nil && *req.Email != user.Email {
			if _, err := s.users.FindByEmail(ctx, *req.Email); err == nil {
				return appErrors.Clone(appErrors.ErrConflict, "email is already in use")
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			user.Email = *req.Email
		}
		if req.ReceivesNotification != nil {
			user.ReceivesNotification = *req.ReceivesNotification
		}

		if err := s.users.UpdateProfile(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrConflict, "email is already in use")
			}
			return err
		}

		updated, err = s.users.FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to update profile")
	}
	s.cache.InvalidateCalendar(ctx)
	return updated, nil
}

func (s *AuthService) signIn(ctx context.Context, user *models.User, meta models.ClientMeta) (*models.AuthResult, error) {
	accessToken, err := s.tokens.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	raw, _, err := s.sessions.Mint(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{User: *user, AccessToken: accessToken, RefreshToken: raw}, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
