package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/middleware"
	"github.com/kc-reserve/hut-api/internal/models"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

func clientMeta(c *gin.Context) models.ClientMeta {
	return models.ClientMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
