package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/database"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type sessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// UserService handles admin account management.
type UserService struct {
	repo      userRepository
	sessions  sessionRevoker
	tx        database.Transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, sessions sessionRevoker, tx database.Transactor, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, sessions: sessions, tx: tx, validator: validate, logger: logger}
}

// List returns accounts matching filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// SetActive toggles an account. Deactivation revokes every refresh session
// of the account in the same transaction.
func (s *UserService) SetActive(ctx context.Context, adminID, id string, req models.SetActiveRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	active := *req.IsActive
	if !active && adminID == id {
		return nil, appErrors.Clone(appErrors.ErrValidation, "admins cannot deactivate their own account")
	}

	var user *models.User
	var revoked int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.SetActive(ctx, id, active); err != nil {
			return err
		}
		if !active {
			var err error
			if revoked, err = s.sessions.RevokeAll(ctx, id); err != nil {
				return err
			}
		}
		var err error
		user, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to update user")
	}

	s.logger.Info("user activation changed",
		zap.String("user_id", id),
		zap.Bool("active", active),
		zap.Int64("revoked_sessions", revoked),
		zap.String("changed_by", adminID),
	)
	return user, nil
}
