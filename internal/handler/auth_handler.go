package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/models"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
	"github.com/kc-reserve/hut-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest, meta models.ClientMeta) (*models.AuthResult, error)
	Login(ctx context.Context, req models.LoginRequest, meta models.ClientMeta) (*models.AuthResult, error)
	Refresh(ctx context.Context, raw string, meta models.ClientMeta) (*models.AuthResult, error)
	Logout(ctx context.Context, raw string) error
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error)
}

type whitelistChecker interface {
	Check(ctx context.Context, email string) (*models.WhitelistCheck, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service   authService
	whitelist whitelistChecker
	cookie    RefreshCookie
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, whitelist whitelistChecker, cookie RefreshCookie) *AuthHandler {
	return &AuthHandler{service: svc, whitelist: whitelist, cookie: cookie}
}

// Register godoc
// @Summary Register account
// @Description Create an account for a whitelisted email and start a session
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.set(c, res.RefreshToken)
	response.Created(c, models.AuthResponse{User: res.User, AccessToken: res.AccessToken})
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req, clientMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookie.set(c, res.RefreshToken)
	response.OK(c, models.AuthResponse{User: res.User, AccessToken: res.AccessToken})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange the refresh cookie for a new access token and a rotated cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw := h.cookie.read(c)
	if raw == "" {
		h.cookie.clear(c)
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing refresh token"))
		return
	}

	res, err := h.service.Refresh(c.Request.Context(), raw, clientMeta(c))
	if err != nil {
		h.cookie.clear(c)
		response.Error(c, err)
		return
	}

	h.cookie.set(c, res.RefreshToken)
	response.OK(c, models.AuthResponse{User: res.User, AccessToken: res.AccessToken})
}

// Logout godoc
// @Summary Logout
// @Description Revoke the refresh session and clear the cookie
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.MessageBody
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := h.cookie.read(c)
	h.cookie.clear(c)
	if raw != "" {
		if err := h.service.Logout(c.Request.Context(), raw); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Message(c, "logged out")
}

// Me godoc
// @Summary Current account
// @Tags Authentication
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.MeResponse
// @Failure 401 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, models.MeResponse{User: *user, Claims: models.MeClaims{IsAdmin: claims.IsAdmin}})
}

// UpdateMe godoc
// @Summary Update own profile
// @Tags Authentication
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.UpdateProfileRequest true "Profile patch"
// @Success 200 {object} dto.UserResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /auth/me [put]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid profile payload"))
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.UserResponse{User: *user})
}

// WhitelistCheck godoc
// @Summary Check registration eligibility
// @Tags Authentication
// @Produce json
// @Param email query string true "Email"
// @Success 200 {object} models.WhitelistCheck
// @Failure 400 {object} response.ErrorBody
// @Router /auth/whitelist-check [get]
func (h *AuthHandler) WhitelistCheck(c *gin.Context) {
	result, err := h.whitelist.Check(c.Request.Context(), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
