package models

import "time"

// Notification is a persisted message for a single recipient.
type Notification struct {
	ID          string    `json:"_id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Read        bool      `json:"read" db:"is_read"`
	CreatedAt   time.Time `json:"date" db:"created_at"`
}
