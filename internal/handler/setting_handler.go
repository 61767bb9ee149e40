package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/response"
)

type settingService interface {
	VideoURL(ctx context.Context) (string, error)
	UpdateVideoURL(ctx context.Context, req models.VideoURLRequest) (string, error)
}

// SettingHandler exposes system settings.
type SettingHandler struct {
	service settingService
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(svc settingService) *SettingHandler {
	return &SettingHandler{service: svc}
}

// VideoURL godoc
// @Summary Guide video URL
// @Tags Settings
// @Produce json
// @Success 200 {object} models.VideoURLResponse
// @Router /system-settings/video-url [get]
func (h *SettingHandler) VideoURL(c *gin.Context) {
	url, err := h.service.VideoURL(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, models.VideoURLResponse{VideoURL: url})
}

// UpdateVideoURL godoc
// @Summary Replace guide video URL
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.VideoURLRequest true "Video URL"
// @Success 200 {object} models.VideoURLResponse
// @Failure 400 {object} response.ErrorBody
// @Router /system-settings/video-url [put]
func (h *SettingHandler) UpdateVideoURL(c *gin.Context) {
	var req models.VideoURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid settings payload"))
		return
	}

	url, err := h.service.UpdateVideoURL(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, models.VideoURLResponse{VideoURL: url, Message: "video URL updated"})
}
