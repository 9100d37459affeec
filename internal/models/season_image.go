package models

import "time"

// SeasonImage is an uploaded background image; at most one row carries
// is_background = true at a time.
type SeasonImage struct {
	ID           string    `db:"id" json:"id"`
	FileName     string    `db:"file_name" json:"file_name"`
	IsBackground bool      `db:"is_background" json:"is_background"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`

	// URL is derived from the public uploads path, not persisted.
	URL string `db:"-" json:"url,omitempty"`
}
