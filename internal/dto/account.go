package dto

import "github.com/kc-reserve/hut-api/internal/models"

// UserResponse wraps a single account.
type UserResponse struct {
	User models.User `json:"user"`
}

// UserListResponse wraps the admin account listing.
type UserListResponse struct {
	Users []models.User `json:"users"`
}

// WhitelistEntryResponse wraps a single whitelist entry.
type WhitelistEntryResponse struct {
	Entry models.WhitelistEntry `json:"entry"`
}

// WhitelistListResponse wraps the whitelist.
type WhitelistListResponse struct {
	Entries []models.WhitelistEntry `json:"entries"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
}
