package models

import "time"

// User represents an account stored in the users table.
type User struct {
	ID                   string    `db:"id" json:"id"`
	Email                string    `db:"email" json:"email"`
	PasswordHash         string    `db:"password_hash" json:"-"`
	DisplayName          *string   `db:"display_name" json:"displayName"`
	IsAdmin              bool      `db:"is_admin" json:"isAdmin"`
	IsActive             bool      `db:"is_active" json:"isActive"`
	ReceivesNotification bool      `db:"receives_notification" json:"receivesNotification"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for the admin account listing.
type UserFilter struct {
	Active  *bool
	IsAdmin *bool
	Search  string
}

// UpdateProfileRequest is the self-service profile patch.
type UpdateProfileRequest struct {
	DisplayName          *string `json:"displayName" validate:"omitempty,max=120"`
	Email                *string `json:"email" validate:"omitempty,email,max=255"`
	ReceivesNotification *bool   `json:"receivesNotification"`
}

// SetActiveRequest toggles an account's activation flag.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}
