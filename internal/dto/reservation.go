package dto

import "time"

// OwnerSummary is the embedded owner profile of a reservation.
type OwnerSummary struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"displayName"`
}

// ReservationView is the plain serialization of a reservation. Fields the
// viewer may not see are null; Owner is omitted entirely.
type ReservationView struct {
	ID                     string        `json:"id"`
	UserID                 string        `json:"userId"`
	Status                 string        `json:"status"`
	Visibility             string        `json:"visibility"`
	Purpose                *string       `json:"purpose"`
	DisplayMessage         *string       `json:"displayMessage"`
	Description            *string       `json:"description"`
	CancellationReason     *string       `json:"cancellationReason"`
	RejectionReason        *string       `json:"rejectionReason"`
	ApprovalMessage        *string       `json:"approvalMessage"`
	AttendeeCount          int           `json:"attendeeCount"`
	AllowAdditionalMembers bool          `json:"allowAdditionalMembers"`
	StartTime              time.Time     `json:"startTime"`
	EndTime                time.Time     `json:"endTime"`
	IsNotificationSent     bool          `json:"isNotificationSent"`
	CreatedAt              time.Time     `json:"createdAt"`
	UpdatedAt              time.Time     `json:"updatedAt"`
	Owner                  *OwnerSummary `json:"owner,omitempty"`
}

// CalendarEvent is one calendar entry after redaction.
type CalendarEvent struct {
	ID                 string    `json:"id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Status             string    `json:"status"`
	Visibility         string    `json:"visibility"`
	IsOwner            bool      `json:"isOwner"`
	Title              string    `json:"title"`
	Purpose            *string   `json:"purpose,omitempty"`
	DisplayMessage     *string   `json:"displayMessage,omitempty"`
	Description        *string   `json:"description,omitempty"`
	AttendeeCount      *int      `json:"attendeeCount,omitempty"`
	OwnerDisplayName   *string   `json:"ownerDisplayName,omitempty"`
	CancellationReason *string   `json:"cancellationReason,omitempty"`
	RejectionReason    *string   `json:"rejectionReason,omitempty"`
	ApprovalMessage    *string   `json:"approvalMessage,omitempty"`
}

// ReservationResponse wraps a single reservation.
type ReservationResponse struct {
	Reservation ReservationView `json:"reservation"`
}

// ReservationListResponse wraps a reservation list.
type ReservationListResponse struct {
	Reservations []ReservationView `json:"reservations"`
}

// CalendarResponse wraps calendar events.
type CalendarResponse struct {
	Events []CalendarEvent `json:"events"`
}

// CountResponse carries a single counter.
type CountResponse struct {
	Count int `json:"count"`
}
