package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/middleware"
	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/service"
	"github.com/kc-reserve/hut-api/pkg/response"
)

type reservationService interface {
	Create(ctx context.Context, viewer models.Viewer, req models.CreateReservationRequest) (*dto.ReservationView, error)
	List(ctx context.Context, viewer models.Viewer, query models.ReservationQuery) ([]dto.ReservationView, error)
	Calendar(ctx context.Context, viewer models.Viewer, query models.ReservationQuery) ([]dto.CalendarEvent, error)
	Mine(ctx context.Context, viewer models.Viewer) ([]dto.ReservationView, error)
	Update(ctx context.Context, viewer models.Viewer, id string, req models.UpdateReservationRequest) (*dto.ReservationView, error)
	AdminUpdateStatus(ctx context.Context, viewer models.Viewer, id string, req models.AdminStatusRequest) (*dto.ReservationView, error)
	PendingCount(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

type reservationExporter interface {
	Reservations(ctx context.Context, format string, query models.ReservationQuery) (*service.ExportFile, error)
}

// ReservationHandler serves member and admin reservation endpoints.
type ReservationHandler struct {
	service  reservationService
	exporter reservationExporter
}

// NewReservationHandler constructs a reservation handler.
func NewReservationHandler(svc reservationService, exporter reservationExporter) *ReservationHandler {
	return &ReservationHandler{service: svc, exporter: exporter}
}

// Create godoc
// @Summary Submit reservation
// @Description Submit a reservation request; it starts as pending
// @Tags Reservations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.CreateReservationRequest true "Reservation payload"
// @Success 201 {object} dto.ReservationResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /reservations [post]
func (h *ReservationHandler) Create(c *gin.Context) {
	var req models.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid reservation payload"))
		return
	}

	view, err := h.service.Create(c.Request.Context(), middleware.Viewer(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.ReservationResponse{Reservation: *view})
}

// List godoc
// @Summary List reservations
// @Description Approved reservations plus the caller's own; admins see everything
// @Tags Reservations
// @Produce json
// @Param start query string false "Window start"
// @Param end query string false "Window end"
// @Param visibility query string false "public or anonymous"
// @Success 200 {object} dto.ReservationListResponse
// @Failure 400 {object} response.ErrorBody
// @Router /reservations [get]
func (h *ReservationHandler) List(c *gin.Context) {
	var query models.ReservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}

	views, err := h.service.List(c.Request.Context(), middleware.Viewer(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReservationListResponse{Reservations: views})
}

// Calendar godoc
// @Summary Calendar events
// @Description Calendar events redacted according to the caller
// @Tags Reservations
// @Produce json
// @Param start query string false "Window start"
// @Param end query string false "Window end"
// @Param visibility query string false "public or anonymous"
// @Success 200 {object} dto.CalendarResponse
// @Failure 400 {object} response.ErrorBody
// @Router /reservations/calendar [get]
func (h *ReservationHandler) Calendar(c *gin.Context) {
	var query models.ReservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}

	events, err := h.service.Calendar(c.Request.Context(), middleware.Viewer(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CalendarResponse{Events: events})
}

// Mine godoc
// @Summary Own reservations
// @Tags Reservations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.ReservationListResponse
// @Failure 401 {object} response.ErrorBody
// @Router /reservations/mine [get]
func (h *ReservationHandler) Mine(c *gin.Context) {
	views, err := h.service.Mine(c.Request.Context(), middleware.Viewer(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReservationListResponse{Reservations: views})
}

// Update godoc
// @Summary Update own reservation
// @Description Edit description or display message, or request cancellation of an approved reservation
// @Tags Reservations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body models.UpdateReservationRequest true "Patch"
// @Success 200 {object} dto.ReservationResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /reservations/{id} [patch]
func (h *ReservationHandler) Update(c *gin.Context) {
	var req models.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid reservation payload"))
		return
	}

	view, err := h.service.Update(c.Request.Context(), middleware.Viewer(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReservationResponse{Reservation: *view})
}

// UpdateStatus godoc
// @Summary Override reservation status
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body models.AdminStatusRequest true "Status payload"
// @Success 200 {object} dto.ReservationResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /admin/reservations/{id}/status [patch]
func (h *ReservationHandler) UpdateStatus(c *gin.Context) {
	var req models.AdminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid status payload"))
		return
	}

	view, err := h.service.AdminUpdateStatus(c.Request.Context(), middleware.Viewer(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ReservationResponse{Reservation: *view})
}

// Delete godoc
// @Summary Delete reservation
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Reservation ID"
// @Success 204
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /admin/reservations/{id} [delete]
func (h *ReservationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PendingCount godoc
// @Summary Count reservations awaiting action
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.CountResponse
// @Router /admin/reservations/pending-count [get]
func (h *ReservationHandler) PendingCount(c *gin.Context) {
	count, err := h.service.PendingCount(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CountResponse{Count: count})
}

// Export godoc
// @Summary Export reservations
// @Tags Admin
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param start query string false "Window start"
// @Param end query string false "Window end"
// @Param visibility query string false "public or anonymous"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Router /admin/reservations/export [get]
func (h *ReservationHandler) Export(c *gin.Context) {
	var query models.ReservationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}

	file, err := h.exporter.Reservations(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
