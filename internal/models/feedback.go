package models

import "time"

// Feedback is a user-submitted suggestion or complaint.
type Feedback struct {
	ID         string     `json:"_id" db:"id"`
	UserID     *string    `json:"userId,omitempty" db:"user_id"`
	Category   string     `json:"Category" db:"category"`
	Suggestion string     `json:"suggestion" db:"suggestion"`
	Feedback   string     `json:"feedback" db:"feedback"`
	Files      StringList `json:"files" db:"files_json"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
}
