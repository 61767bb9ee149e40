package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/pkg/response"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics http.Handler
}

// NewMetricsHandler constructs a metrics handler. A nil handler disables /metrics.
func NewMetricsHandler(metrics http.Handler) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /health [get]
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Ping is a lightweight uptime check.
func (h *MetricsHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, response.MessageBody{Message: "pong"})
}
