package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/repository"
	"github.com/kc-reserve/hut-api/pkg/database"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

type whitelistRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.WhitelistEntry, error)
	FindByID(ctx context.Context, id string) (*models.WhitelistEntry, error)
	List(ctx context.Context) ([]models.WhitelistEntry, error)
	Create(ctx context.Context, entry *models.WhitelistEntry) error
	Update(ctx context.Context, entry *models.WhitelistEntry) error
	Delete(ctx context.Context, id string) error
}

// WhitelistService gates registration and manages whitelist entries.
type WhitelistService struct {
	repo      whitelistRepository
	cache     *CacheService
	tx        database.Transactor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWhitelistService constructs a WhitelistService. cache may be nil.
func NewWhitelistService(repo whitelistRepository, cache *CacheService, tx database.Transactor, validate *validator.Validate, logger *zap.Logger) *WhitelistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WhitelistService{repo: repo, cache: cache, tx: tx, validator: validate, logger: logger}
}

// Lookup returns the entry for email or ErrNotWhitelisted.
func (s *WhitelistService) Lookup(ctx context.Context, email string) (*models.WhitelistEntry, error) {
	entry, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotWhitelisted, "email is not on the whitelist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check whitelist")
	}
	return entry, nil
}

// Check answers the public eligibility question for email.
func (s *WhitelistService) Check(ctx context.Context, email string) (*models.WhitelistCheck, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email query parameter is required")
	}
	entry, err := s.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotWhitelisted) {
			return &models.WhitelistCheck{Allowed: false}, nil
		}
		return nil, err
	}
	defaultAdmin := entry.IsAdminDefault
	return &models.WhitelistCheck{Allowed: true, DefaultAdmin: &defaultAdmin}, nil
}

// List returns all entries, newest first.
func (s *WhitelistService) List(ctx context.Context) ([]models.WhitelistEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list whitelist")
	}
	if entries == nil {
		entries = []models.WhitelistEntry{}
	}
	return entries, nil
}

// Create adds an entry on behalf of adminID.
func (s *WhitelistService) Create(ctx context.Context, adminID string, req models.CreateWhitelistRequest) (*models.WhitelistEntry, error) {
	req.Email = NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	entry := &models.WhitelistEntry{
		Email:          req.Email,
		DisplayName:    trimmedOrNil(req.DisplayName),
		IsAdminDefault: req.IsAdminDefault,
		AddedByUserID:  optionalString(adminID),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email is already whitelisted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create whitelist entry")
	}

	s.logger.Info("whitelist entry added", zap.String("entry_id", entry.ID), zap.String("added_by", adminID))
	return entry, nil
}

// Update patches display name and admin default of an entry.
func (s *WhitelistService) Update(ctx context.Context, id string, req models.UpdateWhitelistRequest) (*models.WhitelistEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var entry *models.WhitelistEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if req.DisplayName != nil {
			entry.DisplayName = trimmedOrNil(req.DisplayName)
		}
		if req.IsAdminDefault != nil {
			entry.IsAdminDefault = *req.IsAdminDefault
		}
		return s.repo.Update(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "whitelist entry not found")
		}
		return nil, internalError(err, "failed to update whitelist entry")
	}
	s.cache.InvalidateCalendar(ctx)
	return entry, nil
}

// Delete removes an entry. Existing accounts are unaffected.
func (s *WhitelistService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "whitelist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete whitelist entry")
	}
	s.cache.InvalidateCalendar(ctx)
	return nil
}
