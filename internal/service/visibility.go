package service

import (
	"fmt"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/models"
)

const (
	defaultEventLabel  = "予約"
	unknownOwnerName   = "Unknown"
	anonymousEventName = "予約済み"
)

// AdminTransitionAllowed decides whether an admin may move a reservation
// from one status to another. Every transition is currently allowed.
func AdminTransitionAllowed(from, to models.ReservationStatus) bool {
	return from.Valid() && to.Valid()
}

// OwnerTransitionAllowed is the only status change an owner may request.
func OwnerTransitionAllowed(from, to models.ReservationStatus) bool {
	return from == models.StatusApproved && to == models.StatusCancellationRequested
}

func canSeePrivate(viewer models.Viewer, res *models.Reservation) bool {
	return viewer.IsAdmin || (viewer.Authenticated() && viewer.UserID == res.UserID)
}

// ToView serializes res for viewer. Admins and the owner get every field;
// anyone else sees purpose and display message only on public reservations.
func ToView(viewer models.Viewer, res *models.Reservation) dto.ReservationView {
	view := dto.ReservationView{
		ID:                     res.ID,
		UserID:                 res.UserID,
		Status:                 string(res.Status),
		Visibility:             string(res.Visibility),
		AttendeeCount:          res.AttendeeCount,
		AllowAdditionalMembers: res.AllowAdditionalMembers,
		StartTime:              res.StartTime.UTC(),
		EndTime:                res.EndTime.UTC(),
		IsNotificationSent:     res.IsNotificationSent,
		CreatedAt:              res.CreatedAt.UTC(),
		UpdatedAt:              res.UpdatedAt.UTC(),
	}

	if canSeePrivate(viewer, res) {
		purpose := res.Purpose
		view.Purpose = &purpose
		view.DisplayMessage = res.DisplayMessage
		view.Description = res.Description
		view.CancellationReason = res.CancellationReason
		view.RejectionReason = res.RejectionReason
		view.ApprovalMessage = res.ApprovalMessage
		view.Owner = &dto.OwnerSummary{ID: res.UserID, Email: res.OwnerEmail, DisplayName: res.OwnerDisplayName}
		return view
	}

	if res.Visibility == models.VisibilityPublic {
		purpose := res.Purpose
		view.Purpose = &purpose
		view.DisplayMessage = res.DisplayMessage
	}
	return view
}

// ToViews serializes a slice for viewer.
func ToViews(viewer models.Viewer, items []models.Reservation) []dto.ReservationView {
	views := make([]dto.ReservationView, 0, len(items))
	for i := range items {
		views = append(views, ToView(viewer, &items[i]))
	}
	return views
}

// ToEvent builds the calendar entry of res as seen by viewer.
func ToEvent(viewer models.Viewer, res *models.Reservation) dto.CalendarEvent {
	event := dto.CalendarEvent{
		ID:         res.ID,
		Start:      res.StartTime.UTC(),
		End:        res.EndTime.UTC(),
		Status:     string(res.Status),
		Visibility: string(res.Visibility),
		IsOwner:    viewer.Authenticated() && viewer.UserID == res.UserID,
	}

	if canSeePrivate(viewer, res) {
		purpose := res.Purpose
		count := res.AttendeeCount
		event.Title = res.Purpose
		event.Purpose = &purpose
		event.DisplayMessage = res.DisplayMessage
		event.Description = res.Description
		event.AttendeeCount = &count
		event.OwnerDisplayName = res.OwnerDisplayName
		event.CancellationReason = res.CancellationReason
		event.RejectionReason = res.RejectionReason
		event.ApprovalMessage = res.ApprovalMessage
		return event
	}

	if res.Visibility != models.VisibilityPublic {
		event.Title = anonymousEventName
		return event
	}

	label := defaultEventLabel
	if res.DisplayMessage != nil && *res.DisplayMessage != "" {
		label = *res.DisplayMessage
	}
	owner := unknownOwnerName
	if res.OwnerDisplayName != nil && *res.OwnerDisplayName != "" {
		owner = *res.OwnerDisplayName
	}
	count := res.AttendeeCount
	event.Title = fmt.Sprintf("%s (%s)", label, owner)
	event.Description = res.Description
	event.AttendeeCount = &count
	event.OwnerDisplayName = res.OwnerDisplayName
	return event
}

// ToEvents builds calendar entries for viewer.
func ToEvents(viewer models.Viewer, items []models.Reservation) []dto.CalendarEvent {
	events := make([]dto.CalendarEvent, 0, len(items))
	for i := range items {
		events = append(events, ToEvent(viewer, &items[i]))
	}
	return events
}
