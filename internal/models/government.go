package models

import "time"

// GovernmentProfile describes a government office and its branches.
type GovernmentProfile struct {
	ID          string    `json:"_id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Address     string    `json:"address" db:"address"`
	Latitude    float64   `json:"latitude" db:"latitude"`
	Longitude   float64   `json:"longitude" db:"longitude"`
	Thumbnail   string    `json:"thumbnail" db:"thumbnail"`
	Contact     string    `json:"contact" db:"contact"`
	Website     string    `json:"website" db:"website"`
	Branches    []Branch  `json:"branches" db:"-"`
	Followers   int       `json:"followers" db:"followers"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Branch is a secondary location of a government profile.
type Branch struct {
	ID        string    `json:"_id" db:"id"`
	ProfileID string    `json:"-" db:"profile_id"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Latitude  float64   `json:"latitude" db:"latitude"`
	Longitude float64   `json:"longitude" db:"longitude"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// NearbyProfile is a profile annotated with the distance to its closest location.
type NearbyProfile struct {
	GovernmentProfile
	Distance float64 `json:"distance"` // metres
}
