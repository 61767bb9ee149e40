package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kc-reserve/hut-api/internal/models"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

type settingRepository interface {
	GetOrInit(ctx context.Context, key, fallback string) (*models.SystemSetting, error)
	Upsert(ctx context.Context, key, value string) (*models.SystemSetting, error)
}

// SettingService exposes the tunable system settings.
type SettingService struct {
	repo            settingRepository
	validator       *validator.Validate
	defaultVideoURL string
}

// NewSettingService constructs a SettingService.
func NewSettingService(repo settingRepository, validate *validator.Validate, defaultVideoURL string) *SettingService {
	if validate == nil {
		validate = validator.New()
	}
	return &SettingService{repo: repo, validator: validate, defaultVideoURL: defaultVideoURL}
}

// VideoURL returns the guide video URL, storing the default on first read.
func (s *SettingService) VideoURL(ctx context.Context) (string, error) {
	setting, err := s.repo.GetOrInit(ctx, models.SettingVideoURL, s.defaultVideoURL)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load video url")
	}
	return setting.Value, nil
}

// UpdateVideoURL replaces the guide video URL.
func (s *SettingService) UpdateVideoURL(ctx context.Context, req models.VideoURLRequest) (string, error) {
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "video_url must be a valid URL")
	}
	setting, err := s.repo.Upsert(ctx, models.SettingVideoURL, req.VideoURL)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save video url")
	}
	return setting.Value, nil
}
