package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/middleware"
	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/service"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

var testCookie = RefreshCookie{
	Name:     "refreshToken",
	Path:     "/api/auth",
	SameSite: http.SameSiteLaxMode,
	TTL:      time.Hour,
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

type authServiceMock struct {
	result     *models.AuthResult
	err        error
	refreshRaw string
	logoutRaw  string
	user       *models.User
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest, meta models.ClientMeta) (*models.AuthResult, error) {
	return m.result, m.err
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest, meta models.ClientMeta) (*models.AuthResult, error) {
	return m.result, m.err
}

func (m *authServiceMock) Refresh(ctx context.Context, raw string, meta models.ClientMeta) (*models.AuthResult, error) {
	m.refreshRaw = raw
	return m.result, m.err
}

func (m *authServiceMock) Logout(ctx context.Context, raw string) error {
	m.logoutRaw = raw
	return m.err
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.User, error) {
	return m.user, m.err
}

func (m *authServiceMock) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	return m.user, m.err
}

type whitelistCheckerMock struct{}

func (whitelistCheckerMock) Check(ctx context.Context, email string) (*models.WhitelistCheck, error) {
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	return &models.WhitelistCheck{Allowed: true}, nil
}

func TestAuthHandlerRegisterSetsCookieOnly(t *testing.T) {
	svc := &authServiceMock{result: &models.AuthResult{
		User:         models.User{ID: "u-1", Email: "a@example.com"},
		AccessToken:  "access-token",
		RefreshToken: "raw-refresh",
	}}
	h := NewAuthHandler(svc, whitelistCheckerMock{}, testCookie)

	body, _ := json.Marshal(models.RegisterRequest{Email: "a@example.com", Password: "password1"})
	c, w := newGinContext(http.MethodPost, "/api/auth/register", body)
	h.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "raw-refresh")

	var res models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "access-token", res.AccessToken)

	ck := findCookie(w, "refreshToken")
	require.NotNil(t, ck)
	assert.Equal(t, "raw-refresh", ck.Value)
	assert.Equal(t, "/api/auth", ck.Path)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, 3600, ck.MaxAge)
}

func TestAuthHandlerRefreshWithoutCookie(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc, whitelistCheckerMock{}, testCookie)

	c, w := newGinContext(http.MethodPost, "/api/auth/refresh", nil)
	h.Refresh(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	ck := findCookie(w, "refreshToken")
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.True(t, ck.MaxAge < 0)
	assert.Empty(t, svc.refreshRaw)
}

func TestAuthHandlerRefreshFailureClearsCookie(t *testing.T) {
	svc := &authServiceMock{err: appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")}
	h := NewAuthHandler(svc, whitelistCheckerMock{}, testCookie)

	c, w := newGinContext(http.MethodPost, "/api/auth/refresh", nil)
	c.Request.AddCookie(&http.Cookie{Name: "refreshToken", Value: "stale"})
	h.Refresh(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "stale", svc.refreshRaw)
	ck := findCookie(w, "refreshToken")
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
}

func TestAuthHandlerRefreshRotatesCookie(t *testing.T) {
	svc := &authServiceMock{result: &models.AuthResult{AccessToken: "next", RefreshToken: "rotated"}}
	h := NewAuthHandler(svc, whitelistCheckerMock{}, testCookie)

	c, w := newGinContext(http.MethodPost, "/api/auth/refresh", nil)
	c.Request.AddCookie(&http.Cookie{Name: "refreshToken", Value: "current"})
	h.Refresh(c)

	require.Equal(t, http.StatusOK, w.Code)
	ck := findCookie(w, "refreshToken")
	require.NotNil(t, ck)
	assert.Equal(t, "rotated", ck.Value)
}

func TestAuthHandlerLogout(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc, whitelistCheckerMock{}, testCookie)

	c, w := newGinContext(http.MethodPost, "/api/auth/logout", nil)
	c.Request.AddCookie(&http.Cookie{Name: "refreshToken", Value: "current"})
	h.Logout(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "current", svc.logoutRaw)
	assert.JSONEq(t, `{"message":"logged out"}`, w.Body.String())
	ck := findCookie(w, "refreshToken")
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
}

func TestAuthHandlerMe(t *testing.T) {
	svc := &authServiceMock{user: &models.User{ID: "u-1", Email: "a@example.com", IsAdmin: true}}
	h := NewAuthHandler(svc, whitelistCheckerMock{}, testCookie)

	c, w := newGinContext(http.MethodGet, "/api/auth/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/api/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", IsAdmin: true})
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	var res models.MeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "u-1", res.User.ID)
	assert.True(t, res.Claims.IsAdmin)
}

func TestAuthHandlerWhitelistCheck(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{}, whitelistCheckerMock{}, testCookie)

	c, w := newGinContext(http.MethodGet, "/api/auth/whitelist-check", nil)
	h.WhitelistCheck(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/api/auth/whitelist-check?email=a@example.com", nil)
	h.WhitelistCheck(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allowed":true}`, w.Body.String())
}

type reservationServiceMock struct {
	viewer  models.Viewer
	view    *dto.ReservationView
	deleted string
	err     error
}

func (m *reservationServiceMock) Create(ctx context.Context, viewer models.Viewer, req models.CreateReservationRequest) (*dto.ReservationView, error) {
	m.viewer = viewer
	return m.view, m.err
}

func (m *reservationServiceMock) List(ctx context.Context, viewer models.Viewer, query models.ReservationQuery) ([]dto.ReservationView, error) {
	m.viewer = viewer
	return []dto.ReservationView{}, m.err
}

func (m *reservationServiceMock) Calendar(ctx context.Context, viewer models.Viewer, query models.ReservationQuery) ([]dto.CalendarEvent, error) {
	m.viewer = viewer
	return []dto.CalendarEvent{{ID: "r-1", Title: "予約済み"}}, m.err
}

func (m *reservationServiceMock) Mine(ctx context.Context, viewer models.Viewer) ([]dto.ReservationView, error) {
	return nil, m.err
}

func (m *reservationServiceMock) Update(ctx context.Context, viewer models.Viewer, id string, req models.UpdateReservationRequest) (*dto.ReservationView, error) {
	return m.view, m.err
}

func (m *reservationServiceMock) AdminUpdateStatus(ctx context.Context, viewer models.Viewer, id string, req models.AdminStatusRequest) (*dto.ReservationView, error) {
	return m.view, m.err
}

func (m *reservationServiceMock) PendingCount(ctx context.Context) (int, error) {
	return 3, m.err
}

func (m *reservationServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return m.err
}

type exporterMock struct {
	format string
}

func (m *exporterMock) Reservations(ctx context.Context, format string, query models.ReservationQuery) (*service.ExportFile, error) {
	m.format = format
	return &service.ExportFile{Filename: "reservations.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("id\n")}, nil
}

func TestReservationHandlerCreatePassesViewer(t *testing.T) {
	svc := &reservationServiceMock{view: &dto.ReservationView{ID: "r-1", Status: "pending"}}
	h := NewReservationHandler(svc, &exporterMock{})

	body := []byte(`{"purpose":"合宿","startTime":"2026-08-01T10:00:00Z","endTime":"2026-08-01T18:00:00Z"}`)
	c, w := newGinContext(http.MethodPost, "/api/reservations", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1"})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.Viewer{UserID: "u-1"}, svc.viewer)

	var res dto.ReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "r-1", res.Reservation.ID)
}

func TestReservationHandlerCreateRejectsMalformedJSON(t *testing.T) {
	h := NewReservationHandler(&reservationServiceMock{}, &exporterMock{})

	c, w := newGinContext(http.MethodPost, "/api/reservations", []byte(`{"purpose":`))
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReservationHandlerCalendarAnonymous(t *testing.T) {
	svc := &reservationServiceMock{}
	h := NewReservationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/api/reservations/calendar?start=2026-08-01", nil)
	h.Calendar(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.viewer.Authenticated())
	assert.Contains(t, w.Body.String(), `"events"`)
}

func TestReservationHandlerDeleteAndCount(t *testing.T) {
	svc := &reservationServiceMock{}
	h := NewReservationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodDelete, "/api/admin/reservations/r-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "r-9"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "r-9", svc.deleted)

	c, w = newGinContext(http.MethodGet, "/api/admin/reservations/pending-count", nil)
	h.PendingCount(c)
	assert.JSONEq(t, `{"count":3}`, w.Body.String())
}

func TestReservationHandlerDeleteNotFound(t *testing.T) {
	svc := &reservationServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "reservation not found")}
	h := NewReservationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodDelete, "/api/admin/reservations/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Delete(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReservationHandlerExport(t *testing.T) {
	exporter := &exporterMock{}
	h := NewReservationHandler(&reservationServiceMock{}, exporter)

	c, w := newGinContext(http.MethodGet, "/api/admin/reservations/export", nil)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, `attachment; filename="reservations.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
}

type userServiceMock struct {
	filter models.UserFilter
}

func (m *userServiceMock) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	m.filter = filter
	return []models.User{}, nil
}

func (m *userServiceMock) SetActive(ctx context.Context, adminID, id string, req models.SetActiveRequest) (*models.User, error) {
	return &models.User{ID: id, IsActive: *req.IsActive}, nil
}

func TestUserHandlerListFilters(t *testing.T) {
	svc := &userServiceMock{}
	h := NewUserHandler(svc)

	c, w := newGinContext(http.MethodGet, "/api/admin/users?active=false&search=yama", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.filter.Active)
	assert.False(t, *svc.filter.Active)
	assert.Equal(t, "yama", svc.filter.Search)
	assert.JSONEq(t, `{"users":[]}`, w.Body.String())

	c, w = newGinContext(http.MethodGet, "/api/admin/users?active=maybe", nil)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsHandlerHealthAndDisabledMetrics(t *testing.T) {
	h := NewMetricsHandler(nil)

	c, w := newGinContext(http.MethodGet, "/health", nil)
	h.Health(c)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	h.Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
