package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/models"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
	"github.com/kc-reserve/hut-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	SetActive(ctx context.Context, adminID, id string, req models.SetActiveRequest) (*models.User, error)
}

// UserHandler serves admin account management.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List accounts
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param active query bool false "Active filter"
// @Param admin query bool false "Admin filter"
// @Param search query string false "Email or display name substring"
// @Success 200 {object} dto.UserListResponse
// @Failure 400 {object} response.ErrorBody
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	var filter models.UserFilter

	if raw := c.Query("active"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active must be a boolean"))
			return
		}
		filter.Active = &val
	}
	if raw := c.Query("admin"); raw != "" {
		val, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "admin must be a boolean"))
			return
		}
		filter.IsAdmin = &val
	}
	filter.Search = c.Query("search")

	users, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.UserListResponse{Users: users})
}

// SetActive godoc
// @Summary Activate or deactivate an account
// @Description Deactivation revokes every refresh session of the account
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.SetActiveRequest true "Activation flag"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /admin/users/{id}/active [patch]
func (h *UserHandler) SetActive(c *gin.Context) {
	var req models.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid activation payload"))
		return
	}

	var adminID string
	if claims := claimsFromContext(c); claims != nil {
		adminID = claims.UserID
	}

	user, err := h.service.SetActive(c.Request.Context(), adminID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.UserResponse{User: *user})
}
