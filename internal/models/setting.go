package models

import "time"

// SettingVideoURL is the key of the hut guide video setting.
const SettingVideoURL = "video_url"

// SystemSetting is a key/value pair in system_settings.
type SystemSetting struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// VideoURLRequest replaces the guide video URL.
type VideoURLRequest struct {
	VideoURL string `json:"video_url" validate:"required,url,max=2048"`
}

// VideoURLResponse carries the guide video URL.
type VideoURLResponse struct {
	VideoURL string `json:"video_url"`
	Message  string `json:"message,omitempty"`
}
