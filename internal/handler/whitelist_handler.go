package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/response"
)

type whitelistService interface {
	List(ctx context.Context) ([]models.WhitelistEntry, error)
	Create(ctx context.Context, adminID string, req models.CreateWhitelistRequest) (*models.WhitelistEntry, error)
	Update(ctx context.Context, id string, req models.UpdateWhitelistRequest) (*models.WhitelistEntry, error)
	Delete(ctx context.Context, id string) error
}

// WhitelistHandler manages registration whitelist entries.
type WhitelistHandler struct {
	service whitelistService
}

// NewWhitelistHandler constructs a whitelist handler.
func NewWhitelistHandler(svc whitelistService) *WhitelistHandler {
	return &WhitelistHandler{service: svc}
}

// List godoc
// @Summary List whitelist entries
// @Description Newest entries first
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.WhitelistListResponse
// @Router /admin/whitelist [get]
func (h *WhitelistHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WhitelistListResponse{Entries: entries})
}

// Create godoc
// @Summary Add whitelist entry
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.CreateWhitelistRequest true "Entry"
// @Success 201 {object} dto.WhitelistEntryResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /admin/whitelist [post]
func (h *WhitelistHandler) Create(c *gin.Context) {
	var req models.CreateWhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid whitelist payload"))
		return
	}

	var adminID string
	if claims := claimsFromContext(c); claims != nil {
		adminID = claims.UserID
	}

	entry, err := h.service.Create(c.Request.Context(), adminID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.WhitelistEntryResponse{Entry: *entry})
}

// Update godoc
// @Summary Update whitelist entry
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body models.UpdateWhitelistRequest true "Patch"
// @Success 200 {object} dto.WhitelistEntryResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /admin/whitelist/{id} [put]
func (h *WhitelistHandler) Update(c *gin.Context) {
	var req models.UpdateWhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid whitelist payload"))
		return
	}

	entry, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WhitelistEntryResponse{Entry: *entry})
}

// Delete godoc
// @Summary Remove whitelist entry
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Router /admin/whitelist/{id} [delete]
func (h *WhitelistHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
