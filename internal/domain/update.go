package domain

import "time"

// Release describes the newest published build.
type Release struct {
	Version     string
	DownloadURL string
}

// UpdateStatus is the outcome of the most recent update check.
type UpdateStatus struct {
	Current     string    `json:"current"`
	Latest      string    `json:"latest,omitempty"`
	Available   bool      `json:"available"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	CheckedAt   time.Time `json:"checkedAt"`
}
