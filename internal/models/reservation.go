package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// ReservationStatus is the workflow state of a reservation. It is stored and
// transmitted as a fixed lowercase literal.
type ReservationStatus string

const (
	StatusPending               ReservationStatus = "pending"
	StatusApproved              ReservationStatus = "approved"
	StatusRejected              ReservationStatus = "rejected"
	StatusCancelled             ReservationStatus = "cancelled"
	StatusCancellationRequested ReservationStatus = "cancellation_requested"
)

// Valid reports whether s is a known status literal.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCancellationRequested:
		return true
	}
	return false
}

// Terminal reports whether owner edits are frozen in this status.
func (s ReservationStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

// Scan rejects unknown literals coming back from storage.
func (s *ReservationStatus) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	status := ReservationStatus(raw)
	if !status.Valid() {
		return fmt.Errorf("unknown reservation status %q", raw)
	}
	*s = status
	return nil
}

// Value implements driver.Valuer.
func (s ReservationStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown reservation status %q", string(s))
	}
	return string(s), nil
}

// ReservationVisibility controls how much non-owners may see.
type ReservationVisibility string

const (
	VisibilityPublic    ReservationVisibility = "public"
	VisibilityAnonymous ReservationVisibility = "anonymous"
)

// Valid reports whether v is a known visibility literal.
func (v ReservationVisibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityAnonymous
}

// Scan rejects unknown literals coming back from storage.
func (v *ReservationVisibility) Scan(src interface{}) error {
	raw, err := scanString(src)
	if err != nil {
		return err
	}
	visibility := ReservationVisibility(raw)
	if !visibility.Valid() {
		return fmt.Errorf("unknown reservation visibility %q", raw)
	}
	*v = visibility
	return nil
}

// Value implements driver.Valuer.
func (v ReservationVisibility) Value() (driver.Value, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("unknown reservation visibility %q", string(v))
	}
	return string(v), nil
}

func scanString(src interface{}) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}

// Reservation is a booking of the hut. Owner columns are populated by the
// joined read queries only.
type Reservation struct {
	ID                     string                `db:"id"`
	UserID                 string                `db:"user_id"`
	Status                 ReservationStatus     `db:"status"`
	Visibility             ReservationVisibility `db:"visibility"`
	Purpose                string                `db:"purpose"`
	DisplayMessage         *string               `db:"display_message"`
	Description            *string               `db:"description"`
	CancellationReason     *string               `db:"cancellation_reason"`
	RejectionReason        *string               `db:"rejection_reason"`
	ApprovalMessage        *string               `db:"approval_message"`
	AttendeeCount          int                   `db:"attendee_count"`
	AllowAdditionalMembers bool                  `db:"allow_additional_members"`
	StartTime              time.Time             `db:"start_time"`
	EndTime                time.Time             `db:"end_time"`
	IsNotificationSent     bool                  `db:"is_notification_sent"`
	CreatedAt              time.Time             `db:"created_at"`
	UpdatedAt              time.Time             `db:"updated_at"`

	OwnerEmail       string  `db:"owner_email"`
	OwnerDisplayName *string `db:"owner_display_name"`
}

// ReservationFilter narrows list and calendar queries. Start and End bound
// an inclusive overlap window.
type ReservationFilter struct {
	Start      *time.Time
	End        *time.Time
	Visibility *ReservationVisibility

	// Visible restricts results to approved reservations plus those owned by
	// OwnerID. Admin queries leave it false.
	Visible bool
	OwnerID string
}

// CreateReservationRequest is the member submission. Timestamps are kept raw
// so every validation failure can be reported at once.
type CreateReservationRequest struct {
	Purpose                string  `json:"purpose" validate:"required,max=255"`
	StartTime              string  `json:"startTime"`
	EndTime                string  `json:"endTime"`
	Visibility             *string `json:"visibility" validate:"omitempty,reservation_visibility"`
	DisplayMessage         *string `json:"displayMessage" validate:"omitempty,max=255"`
	Description            *string `json:"description" validate:"omitempty,max=5000"`
	AttendeeCount          *int    `json:"attendeeCount" validate:"omitempty,min=1"`
	AllowAdditionalMembers bool    `json:"allowAdditionalMembers"`
}

// UpdateReservationRequest is the owner patch.
type UpdateReservationRequest struct {
	Description        *string `json:"description" validate:"omitempty,max=5000"`
	DisplayMessage     *string `json:"displayMessage" validate:"omitempty,max=255"`
	Status             *string `json:"status" validate:"omitempty,reservation_status"`
	CancellationReason *string `json:"cancellationReason" validate:"omitempty,max=2000"`
}

// AdminStatusRequest is the admin status override.
type AdminStatusRequest struct {
	Status          string  `json:"status" validate:"required,reservation_status"`
	Visibility      *string `json:"visibility" validate:"omitempty,reservation_visibility"`
	RejectionReason *string `json:"rejectionReason" validate:"omitempty,max=2000"`
	ApprovalMessage *string `json:"approvalMessage" validate:"omitempty,max=2000"`
}

// ReservationQuery is the raw list/calendar query string.
type ReservationQuery struct {
	Start      string `form:"start"`
	End        string `form:"end"`
	Visibility string `form:"visibility"`
}
