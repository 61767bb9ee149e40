package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/notification"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

func createRequest(purpose string, visibility string) models.CreateReservationRequest {
	return models.CreateReservationRequest{
		Purpose:    purpose,
		StartTime:  "2026-08-01T09:00:00Z",
		EndTime:    "2026-08-02T09:00:00Z",
		Visibility: strPtr(visibility),
	}
}

func findEvent(events []dto.CalendarEvent, id string) *dto.CalendarEvent {
	for i := range events {
		if events[i].ID == id {
			return &events[i]
		}
	}
	return nil
}

func findView(views []dto.ReservationView, id string) *dto.ReservationView {
	for i := range views {
		if views[i].ID == id {
			return &views[i]
		}
	}
	return nil
}

func TestCreateDefaultsAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.seedUser(t, "member@example.com", "Member", false)
	f.seedUser(t, "admin@example.com", "Admin", true)

	view, err := f.reservations.Create(ctx, viewerOf(member), models.CreateReservationRequest{
		Purpose:   "Hike",
		StartTime: "2026-08-01T09:00:00",
		EndTime:   "2026-08-01T18:00:00+02:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "pending", view.Status)
	assert.Equal(t, "public", view.Visibility)
	assert.Equal(t, 1, view.AttendeeCount)
	assert.Equal(t, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC), view.StartTime)

	msgs := f.dispatcher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, notification.KindNewReservation, msgs[0].Kind)
	assert.Equal(t, []string{"admin@example.com"}, msgs[0].Recipients)
	assert.Equal(t, "Member", msgs[0].OwnerName)
}

func TestCreateCollectsAllValidationErrors(t *testing.T) {
	f := newFixture(t)
	member := f.seedUser(t, "member@example.com", "Member", false)
	zero := 0

	_, err := f.reservations.Create(context.Background(), viewerOf(member), models.CreateReservationRequest{
		StartTime:     "tomorrow",
		EndTime:       "2026-08-01T09:00:00Z",
		Visibility:    strPtr("secret"),
		AttendeeCount: &zero,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Message, "purpose is required")
	assert.Contains(t, appErr.Message, "startTime must be an ISO 8601 timestamp")
	assert.Contains(t, appErr.Message, "visibility must be public or anonymous")
	assert.Contains(t, appErr.Message, "attendeeCount must be at least 1")
	assert.Contains(t, appErr.Message, "; ")
	assert.Empty(t, f.dispatcher.Messages())
}

func TestCreateRejectsEndNotAfterStart(t *testing.T) {
	f := newFixture(t)
	member := f.seedUser(t, "member@example.com", "Member", false)

	_, err := f.reservations.Create(context.Background(), viewerOf(member), models.CreateReservationRequest{
		Purpose:   "Hike",
		StartTime: "2026-08-01T09:00:00Z",
		EndTime:   "2026-08-01T09:00:00Z",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, appErrors.FromError(err).Message, "endTime must be after startTime")
}

func TestPendingReservationInvisibleUntilApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	other := f.seedUser(t, "other@example.com", "Other", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	created, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("Secret trip", "anonymous"))
	require.NoError(t, err)

	for _, viewer := range []models.Viewer{{}, viewerOf(other)} {
		list, err := f.reservations.List(ctx, viewer, models.ReservationQuery{})
		require.NoError(t, err)
		assert.Empty(t, list)
	}

	mine, err := f.reservations.List(ctx, viewerOf(owner), models.ReservationQuery{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Secret trip", *mine[0].Purpose)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), created.ID, models.AdminStatusRequest{Status: "approved", ApprovalMessage: strPtr("Enjoy")})
	require.NoError(t, err)

	anon, err := f.reservations.List(ctx, models.Viewer{}, models.ReservationQuery{})
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Nil(t, anon[0].Purpose)
	assert.Nil(t, anon[0].ApprovalMessage)
	assert.Nil(t, anon[0].Owner)

	adminView, err := f.reservations.List(ctx, viewerOf(admin), models.ReservationQuery{})
	require.NoError(t, err)
	require.Len(t, adminView, 1)
	assert.Equal(t, "Enjoy", *adminView[0].ApprovalMessage)
	assert.Equal(t, "owner@example.com", adminView[0].Owner.Email)
}

func TestCalendarRedaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	anonymous, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("Private", "anonymous"))
	require.NoError(t, err)
	public, err := f.reservations.Create(ctx, viewerOf(owner), models.CreateReservationRequest{
		Purpose: "Club", StartTime: "2026-09-01T09:00:00Z", EndTime: "2026-09-02T09:00:00Z",
		DisplayMessage: strPtr("Alpine club"),
	})
	require.NoError(t, err)
	for _, id := range []string{anonymous.ID, public.ID} {
		_, err := f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), id, models.AdminStatusRequest{Status: "approved"})
		require.NoError(t, err)
	}

	events, err := f.reservations.Calendar(ctx, models.Viewer{}, models.ReservationQuery{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	anonEvent := findEvent(events, anonymous.ID)
	assert.Equal(t, "予約済み", anonEvent.Title)
	assert.Nil(t, anonEvent.Purpose)
	assert.Nil(t, anonEvent.OwnerDisplayName)
	assert.False(t, anonEvent.IsOwner)
	assert.Equal(t, "Alpine club (Owner)", findEvent(events, public.ID).Title)

	ownerEvents, err := f.reservations.Calendar(ctx, viewerOf(owner), models.ReservationQuery{})
	require.NoError(t, err)
	own := findEvent(ownerEvents, anonymous.ID)
	assert.Equal(t, "Private", own.Title)
	assert.True(t, own.IsOwner)

	adminEvents, err := f.reservations.Calendar(ctx, viewerOf(admin), models.ReservationQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Private", findEvent(adminEvents, anonymous.ID).Title)
}

func TestListFiltersByWindowAndVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	august, err := f.reservations.Create(ctx, viewerOf(admin), createRequest("August", "public"))
	require.NoError(t, err)
	_, err = f.reservations.Create(ctx, viewerOf(admin), models.CreateReservationRequest{
		Purpose: "October", StartTime: "2026-10-01T00:00:00Z", EndTime: "2026-10-02T00:00:00Z", Visibility: strPtr("anonymous"),
	})
	require.NoError(t, err)

	list, err := f.reservations.List(ctx, viewerOf(admin), models.ReservationQuery{Start: "2026-08-02T09:00:00Z", End: "2026-08-31T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, list, 1, "an overlap touching the window edge is included")
	assert.Equal(t, august.ID, list[0].ID)

	list, err = f.reservations.List(ctx, viewerOf(admin), models.ReservationQuery{Visibility: "anonymous"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "October", *list[0].Purpose)

	_, err = f.reservations.List(ctx, viewerOf(admin), models.ReservationQuery{Start: "soon", Visibility: "hidden"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestMineOrdersLatestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com", "Owner", false)

	first, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("First", "public"))
	require.NoError(t, err)
	second, err := f.reservations.Create(ctx, viewerOf(owner), models.CreateReservationRequest{
		Purpose: "Second", StartTime: "2026-12-01T00:00:00Z", EndTime: "2026-12-02T00:00:00Z",
	})
	require.NoError(t, err)

	mine, err := f.reservations.Mine(ctx, viewerOf(owner))
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, first.ID, mine[1].ID)
}

func TestOwnerUpdateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	other := f.seedUser(t, "other@example.com", "Other", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	res, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("Hike", "public"))
	require.NoError(t, err)

	_, err = f.reservations.Update(ctx, viewerOf(other), res.ID, models.UpdateReservationRequest{Description: strPtr("mine now")})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.reservations.Update(ctx, viewerOf(owner), "missing", models.UpdateReservationRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.reservations.Update(ctx, viewerOf(owner), res.ID, models.UpdateReservationRequest{Status: strPtr("cancellation_requested")})
	assert.ErrorIs(t, err, appErrors.ErrValidation, "pending reservations cannot request cancellation")

	_, err = f.reservations.Update(ctx, viewerOf(owner), res.ID, models.UpdateReservationRequest{Status: strPtr("approved")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	updated, err := f.reservations.Update(ctx, viewerOf(owner), res.ID, models.UpdateReservationRequest{Description: strPtr("Bring boots")})
	require.NoError(t, err)
	assert.Equal(t, "Bring boots", *updated.Description)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "approved"})
	require.NoError(t, err)
	before := len(f.dispatcher.Messages())

	cancelled, err := f.reservations.Update(ctx, viewerOf(owner), res.ID, models.UpdateReservationRequest{
		Status: strPtr("cancellation_requested"), CancellationReason: strPtr("Weather"),
	})
	require.NoError(t, err)
	assert.Equal(t, "cancellation_requested", cancelled.Status)
	assert.Equal(t, "Weather", *cancelled.CancellationReason)

	msgs := f.dispatcher.Messages()
	require.Len(t, msgs, before+1)
	assert.Equal(t, notification.KindCancellationRequest, msgs[len(msgs)-1].Kind)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "rejected", RejectionReason: strPtr("Closed")})
	require.NoError(t, err)
	_, err = f.reservations.Update(ctx, viewerOf(owner), res.ID, models.UpdateReservationRequest{DisplayMessage: strPtr("late edit")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAdminUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)
	res, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("Hike", "public"))
	require.NoError(t, err)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(owner), res.ID, models.AdminStatusRequest{Status: "approved"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "done"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "approved", Visibility: strPtr("hidden")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), "missing", models.AdminStatusRequest{Status: "approved"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	rejected, err := f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{
		Status: "rejected", Visibility: strPtr("anonymous"), RejectionReason: strPtr("Full"),
	})
	require.NoError(t, err)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, "anonymous", rejected.Visibility)
	assert.Equal(t, "Full", *rejected.RejectionReason)

	revived, err := f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "approved", ApprovalMessage: strPtr("Reopened")})
	require.NoError(t, err, "admin transitions are permissive")
	assert.Equal(t, "Reopened", *revived.ApprovalMessage)
}

func TestPendingCountAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	a, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("A", "public"))
	require.NoError(t, err)
	b, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("B", "public"))
	require.NoError(t, err)
	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), b.ID, models.AdminStatusRequest{Status: "cancellation_requested"})
	require.NoError(t, err)
	c, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("C", "public"))
	require.NoError(t, err)
	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), c.ID, models.AdminStatusRequest{Status: "approved"})
	require.NoError(t, err)

	count, err := f.reservations.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, f.reservations.Delete(ctx, a.ID))
	assert.ErrorIs(t, f.reservations.Delete(ctx, a.ID), appErrors.ErrNotFound)
}

type memCacheRepo struct {
	data    map[string][]dto.CalendarEvent
	deletes int
}

func (m *memCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	events, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*[]dto.CalendarEvent)) = events
	return nil
}

func (m *memCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.data[key] = value.([]dto.CalendarEvent)
	return nil
}

func (m *memCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes++
	m.data = map[string][]dto.CalendarEvent{}
	return nil
}

func TestAnonymousCalendarIsCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &memCacheRepo{data: map[string][]dto.CalendarEvent{}}
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	f.reservations.cache = cache
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	res, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("Hike", "public"))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.deletes)

	events, err := f.reservations.Calendar(ctx, models.Viewer{}, models.ReservationQuery{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Len(t, repo.data, 1)

	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Empty(t, repo.data)

	events, err = f.reservations.Calendar(ctx, models.Viewer{}, models.ReservationQuery{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = f.reservations.Calendar(ctx, viewerOf(owner), models.ReservationQuery{})
	require.NoError(t, err)
	assert.Len(t, repo.data, 1, "authenticated calendars are never cached")
}

func TestOwnerRenameInvalidatesCalendarCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := &memCacheRepo{data: map[string][]dto.CalendarEvent{}}
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	f.reservations.cache = cache
	f.auth.cache = cache
	f.whitelist.cache = cache
	owner := f.seedUser(t, "owner@example.com", "Owner", false)
	admin := f.seedUser(t, "admin@example.com", "Admin", true)

	res, err := f.reservations.Create(ctx, viewerOf(owner), createRequest("Hike", "public"))
	require.NoError(t, err)
	_, err = f.reservations.AdminUpdateStatus(ctx, viewerOf(admin), res.ID, models.AdminStatusRequest{Status: "approved"})
	require.NoError(t, err)

	title := func() string {
		events, err := f.reservations.Calendar(ctx, models.Viewer{}, models.ReservationQuery{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		return events[0].Title
	}
	assert.Equal(t, "予約 (Owner)", title())
	require.Len(t, repo.data, 1)

	entry, err := f.whitelist.Lookup(ctx, "owner@example.com")
	require.NoError(t, err)
	_, err = f.whitelist.Update(ctx, entry.ID, models.UpdateWhitelistRequest{DisplayName: strPtr("Listed")})
	require.NoError(t, err)
	assert.Empty(t, repo.data)
	assert.Equal(t, "予約 (Listed)", title())

	_, err = f.auth.UpdateProfile(ctx, owner.ID, models.UpdateProfileRequest{DisplayName: strPtr("Chosen")})
	require.NoError(t, err)
	assert.Empty(t, repo.data)
	assert.Equal(t, "予約 (Chosen)", title())

	require.NoError(t, f.whitelist.Delete(ctx, entry.ID))
	assert.Empty(t, repo.data)
}
