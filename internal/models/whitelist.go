package models

import "time"

// WhitelistEntry permits an email to self-register and seeds its role.
type WhitelistEntry struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	DisplayName    *string   `db:"display_name" json:"displayName"`
	IsAdminDefault bool      `db:"is_admin_default" json:"isAdminDefault"`
	AddedByUserID  *string   `db:"added_by_user_id" json:"addedByUserId"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// CreateWhitelistRequest adds an email to the whitelist.
type CreateWhitelistRequest struct {
	Email          string  `json:"email" validate:"required,email,max=255"`
	DisplayName    *string `json:"displayName" validate:"omitempty,max=120"`
	IsAdminDefault bool    `json:"isAdminDefault"`
}

// UpdateWhitelistRequest patches an existing entry.
type UpdateWhitelistRequest struct {
	DisplayName    *string `json:"displayName" validate:"omitempty,max=120"`
	IsAdminDefault *bool   `json:"isAdminDefault"`
}

// WhitelistCheck is the public eligibility answer.
type WhitelistCheck struct {
	Allowed      bool  `json:"allowed"`
	DefaultAdmin *bool `json:"defaultAdmin,omitempty"`
}
