package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kc-reserve/hut-api/internal/models"
)

func sampleRes(visibility models.ReservationVisibility) *models.Reservation {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return &models.Reservation{
		ID: "r1", UserID: "owner", Status: models.StatusApproved, Visibility: visibility,
		Purpose: "Summit", DisplayMessage: strPtr("Club trip"), Description: strPtr("Details"),
		ApprovalMessage: strPtr("OK"), AttendeeCount: 4,
		StartTime: start, EndTime: start.Add(time.Hour),
		OwnerEmail: "owner@example.com", OwnerDisplayName: strPtr("Owner"),
	}
}

func TestAdminTransitionAllowedIsPermissive(t *testing.T) {
	statuses := []models.ReservationStatus{
		models.StatusPending, models.StatusApproved, models.StatusRejected,
		models.StatusCancelled, models.StatusCancellationRequested,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.True(t, AdminTransitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, AdminTransitionAllowed(models.StatusPending, "archived"))
}

func TestOwnerTransitionAllowed(t *testing.T) {
	assert.True(t, OwnerTransitionAllowed(models.StatusApproved, models.StatusCancellationRequested))
	assert.False(t, OwnerTransitionAllowed(models.StatusPending, models.StatusCancellationRequested))
	assert.False(t, OwnerTransitionAllowed(models.StatusApproved, models.StatusCancelled))
}

func TestToViewRedactsForStrangers(t *testing.T) {
	stranger := models.Viewer{UserID: "someone"}

	public := ToView(stranger, sampleRes(models.VisibilityPublic))
	assert.Equal(t, "Summit", *public.Purpose)
	assert.Equal(t, "Club trip", *public.DisplayMessage)
	assert.Nil(t, public.Description)
	assert.Nil(t, public.ApprovalMessage)
	assert.Nil(t, public.Owner)

	anonymous := ToView(models.Viewer{}, sampleRes(models.VisibilityAnonymous))
	assert.Nil(t, anonymous.Purpose)
	assert.Nil(t, anonymous.DisplayMessage)
	assert.Equal(t, 4, anonymous.AttendeeCount)
}

func TestToViewShowsEverythingToOwnerAndAdmin(t *testing.T) {
	for _, viewer := range []models.Viewer{{UserID: "owner"}, {UserID: "admin", IsAdmin: true}} {
		view := ToView(viewer, sampleRes(models.VisibilityAnonymous))
		assert.Equal(t, "Summit", *view.Purpose)
		assert.Equal(t, "Details", *view.Description)
		assert.Equal(t, "OK", *view.ApprovalMessage)
		assert.Equal(t, "owner@example.com", view.Owner.Email)
	}
}

func TestToEventTitles(t *testing.T) {
	stranger := models.Viewer{}

	assert.Equal(t, "Club trip (Owner)", ToEvent(stranger, sampleRes(models.VisibilityPublic)).Title)

	bare := sampleRes(models.VisibilityPublic)
	bare.DisplayMessage = nil
	bare.OwnerDisplayName = nil
	event := ToEvent(stranger, bare)
	assert.Equal(t, "予約 (Unknown)", event.Title)
	assert.Equal(t, "Details", *event.Description)
	assert.Equal(t, 4, *event.AttendeeCount)

	hidden := ToEvent(stranger, sampleRes(models.VisibilityAnonymous))
	assert.Equal(t, "予約済み", hidden.Title)
	assert.Nil(t, hidden.Description)
	assert.Nil(t, hidden.AttendeeCount)
	assert.Nil(t, hidden.OwnerDisplayName)

	owned := ToEvent(models.Viewer{UserID: "owner"}, sampleRes(models.VisibilityAnonymous))
	assert.Equal(t, "Summit", owned.Title)
	assert.True(t, owned.IsOwner)
}
