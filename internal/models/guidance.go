package models

import "time"

// Guidance is an admin-authored how-to for a public service.
type Guidance struct {
	ID                  string             `json:"_id" db:"id"`
	Title               string             `json:"title" db:"title"`
	Description         string             `json:"description" db:"description"`
	Category            string             `json:"category" db:"category"`
	Thumbnail           string             `json:"thumbnail" db:"thumbnail"`
	DocumentsRequired   StringList         `json:"documents_required" db:"documents_required_json"`
	CostRequired        string             `json:"cost_required" db:"cost_required"`
	GovernmentProfileID *string            `json:"government_profile_id,omitempty" db:"government_profile_id"`
	GovernmentProfile   *GovernmentProfile `json:"government_profile,omitempty" db:"-"`
	Tracking            []DocumentTracking `json:"tracking,omitempty" db:"-"`
	CreatedAt           time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time          `json:"updatedAt" db:"updated_at"`
}

// DocumentTracking records whether a user has a required document ready.
type DocumentTracking struct {
	Document  string `json:"document" db:"document"`
	IsChecked bool   `json:"isChecked" db:"is_checked"`
}
