package domain

import "time"

// Day groups exercises, e.g. "Push day".
type Day struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Exercise belongs to exactly one day and references at most one media item:
// either a stored record by MediaID (owned, deleted together with the
// exercise) or an inline LegacyImage data URI (not owned by the media store).
type Exercise struct {
	ID          string    `json:"id"`
	DayID       string    `json:"dayId"`
	Name        string    `json:"name"`
	MediaID     MediaID   `json:"mediaId,omitempty"`
	MediaKind   MediaKind `json:"mediaType,omitempty"`
	LegacyImage string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasMedia reports whether the exercise owns a media record.
func (ex Exercise) HasMedia() bool {
	return ex.MediaID != ""
}
