package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// ProfileInput is the data for a new government profile.
type ProfileInput struct {
	Name        string
	Description string
	Address     string
	Latitude    *float64
	Longitude   *float64
	Thumbnail   string
	Contact     string
	Website     string
}

// ProfilePatch lists the fields to change on a profile. Nil means unchanged.
type ProfilePatch struct {
	Name        *string
	Description *string
	Address     *string
	Latitude    *float64
	Longitude   *float64
	Thumbnail   *string
	Contact     *string
	Website     *string
}

// BranchInput is the data for a new branch.
type BranchInput struct {
	Name      string
	Address   string
	Latitude  *float64
	Longitude *float64
}

// GovernmentServiceProvider defines the interface for government profile services.
type GovernmentServiceProvider interface {
	Create(ctx context.Context, in ProfileInput) (models.GovernmentProfile, error)
	List(ctx context.Context) ([]models.GovernmentProfile, error)
	Get(ctx context.Context, id string) (models.GovernmentProfile, error)
	Update(ctx context.Context, id string, patch ProfilePatch) (models.GovernmentProfile, error)
	Delete(ctx context.Context, id string) error
	AddBranch(ctx context.Context, profileID string, in BranchInput) (models.GovernmentProfile, error)
	Nearest(ctx context.Context, lat, lng float64) ([]models.NearbyProfile, error)
	Follow(ctx context.Context, profileID, userID string) error
	Unfollow(ctx context.Context, profileID, userID string) error
	Following(ctx context.Context, userID string) ([]models.GovernmentProfile, error)
}

// GovernmentService provides business logic for government profiles.
type GovernmentService struct {
	db           *sqlx.DB
	radiusMeters float64
	now          func() time.Time
}

// NewGovernmentService creates a new GovernmentService. radiusMeters bounds Nearest.
func NewGovernmentService(db *sqlx.DB, radiusMeters float64) *GovernmentService {
	return &GovernmentService{db: db, radiusMeters: radiusMeters, now: func() time.Time { return time.Now().UTC() }}
}

const profileSelect = `
	SELECT g.id, g.name, g.description, g.address, g.latitude, g.longitude, g.thumbnail, g.contact, g.website,
		g.created_at, g.updated_at,
		(SELECT COUNT(*) FROM government_follows f WHERE f.profile_id = g.id) AS followers
	FROM government_profiles g`

// Create stores a new profile. Every field except contact details is required.
func (s *GovernmentService) Create(ctx context.Context, in ProfileInput) (models.GovernmentProfile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" || in.Description == "" || in.Address == "" || in.Latitude == nil || in.Longitude == nil || in.Thumbnail == "" {
		return models.GovernmentProfile{}, Invalid("All fields are required, including a thumbnail.")
	}
	if !validCoordinates(*in.Latitude, *in.Longitude) {
		return models.GovernmentProfile{}, Invalid("Invalid coordinates")
	}

	now := s.now()
	p := models.GovernmentProfile{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		Address:     in.Address,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Thumbnail:   in.Thumbnail,
		Contact:     strings.TrimSpace(in.Contact),
		Website:     strings.TrimSpace(in.Website),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO government_profiles (id, name, description, address, latitude, longitude, thumbnail, contact, website, created_at, updated_at)
		VALUES (:id, :name, :description, :address, :latitude, :longitude, :thumbnail, :contact, :website, :created_at, :updated_at)`, &p)
	if err != nil {
		return models.GovernmentProfile{}, fmt.Errorf("insert government profile: %w", err)
	}
	p.Branches = []models.Branch{}
	return p, nil
}

// List returns all profiles with their branches, ordered by name.
func (s *GovernmentService) List(ctx context.Context) ([]models.GovernmentProfile, error) {
	profiles := []models.GovernmentProfile{}
	if err := s.db.SelectContext(ctx, &profiles, profileSelect+` ORDER BY g.name`); err != nil {
		return nil, err
	}
	return profiles, s.attachBranches(ctx, profiles)
}

// Get returns one profile with its branches.
func (s *GovernmentService) Get(ctx context.Context, id string) (models.GovernmentProfile, error) {
	var p models.GovernmentProfile
	err := s.db.GetContext(ctx, &p, profileSelect+` WHERE g.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GovernmentProfile{}, fmt.Errorf("government profile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.GovernmentProfile{}, err
	}
	list := []models.GovernmentProfile{p}
	if err := s.attachBranches(ctx, list); err != nil {
		return models.GovernmentProfile{}, err
	}
	return list[0], nil
}

func (s *GovernmentService) attachBranches(ctx context.Context, profiles []models.GovernmentProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	ids := make([]string, len(profiles))
	index := make(map[string]int, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
		index[p.ID] = i
		profiles[i].Branches = []models.Branch{}
	}
	query, args, err := sqlx.In(`SELECT id, profile_id, name, address, latitude, longitude, created_at
		FROM government_branches WHERE profile_id IN (?) ORDER BY created_at`, ids)
	if err != nil {
		return err
	}
	var branches []models.Branch
	if err := s.db.SelectContext(ctx, &branches, s.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, b := range branches {
		i := index[b.ProfileID]
		profiles[i].Branches = append(profiles[i].Branches, b)
	}
	return nil
}

// Update applies a partial change to a profile.
func (s *GovernmentService) Update(ctx context.Context, id string, patch ProfilePatch) (models.GovernmentProfile, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return models.GovernmentProfile{}, err
	}
	setString := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}
	setString(&current.Name, patch.Name)
	setString(&current.Description, patch.Description)
	setString(&current.Address, patch.Address)
	setString(&current.Thumbnail, patch.Thumbnail)
	if patch.Contact != nil {
		current.Contact = strings.TrimSpace(*patch.Contact)
	}
	if patch.Website != nil {
		current.Website = strings.TrimSpace(*patch.Website)
	}
	if patch.Latitude != nil {
		current.Latitude = *patch.Latitude
	}
	if patch.Longitude != nil {
		current.Longitude = *patch.Longitude
	}
	if !validCoordinates(current.Latitude, current.Longitude) {
		return models.GovernmentProfile{}, Invalid("Invalid coordinates")
	}
	current.UpdatedAt = s.now()

	_, err = s.db.NamedExecContext(ctx, `
		UPDATE government_profiles SET name = :name, description = :description, address = :address,
			latitude = :latitude, longitude = :longitude, thumbnail = :thumbnail, contact = :contact,
			website = :website, updated_at = :updated_at
		WHERE id = :id`, &current)
	if err != nil {
		return models.GovernmentProfile{}, fmt.Errorf("update government profile: %w", err)
	}
	return current, nil
}

// Delete removes a profile and its branches.
func (s *GovernmentService) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM government_profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddBranch appends a branch location to a profile.
func (s *GovernmentService) AddBranch(ctx context.Context, profileID string, in BranchInput) (models.GovernmentProfile, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	if in.Name == "" || in.Address == "" || in.Latitude == nil || in.Longitude == nil {
		return models.GovernmentProfile{}, Invalid("Branch name, address, latitude and longitude are required.")
	}
	if !validCoordinates(*in.Latitude, *in.Longitude) {
		return models.GovernmentProfile{}, Invalid("Invalid coordinates")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO government_branches (id, profile_id, name, address, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, uuid.New().String(), profileID, in.Name, in.Address, *in.Latitude, *in.Longitude, s.now())
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.GovernmentProfile{}, ErrNotFound
		}
		return models.GovernmentProfile{}, fmt.Errorf("insert branch: %w", err)
	}
	return s.Get(ctx, profileID)
}

type locationRow struct {
	ProfileID string  `db:"profile_id"`
	Latitude  float64 `db:"latitude"`
	Longitude float64 `db:"longitude"`
}

// Nearest returns the profiles whose headquarters or any branch lies within
// the configured radius, closest first. The distance reported is to the
// nearest of those locations.
func (s *GovernmentService) Nearest(ctx context.Context, lat, lng float64) ([]models.NearbyProfile, error) {
	if !validCoordinates(lat, lng) {
		return nil, Invalid("Valid latitude and longitude are required")
	}
	minLat, maxLat, minLng, maxLng, _ := boundingBox(lat, lng, s.radiusMeters)

	// The bounding box is a cheap prefilter; the exact cut happens below.
	var candidates []locationRow
	err := s.db.SelectContext(ctx, &candidates, `
		SELECT id AS profile_id, latitude, longitude FROM government_profiles
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		UNION ALL
		SELECT profile_id, latitude, longitude FROM government_branches
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`,
		minLat, maxLat, minLng, maxLng, minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("select nearby locations: %w", err)
	}

	best := map[string]float64{}
	for _, c := range candidates {
		d := haversine(lat, lng, c.Latitude, c.Longitude)
		if d > s.radiusMeters {
			continue
		}
		if cur, ok := best[c.ProfileID]; !ok || d < cur {
			best[c.ProfileID] = d
		}
	}
	if len(best) == 0 {
		return []models.NearbyProfile{}, nil
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	query, args, err := sqlx.In(profileSelect+` WHERE g.id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var profiles []models.GovernmentProfile
	if err := s.db.SelectContext(ctx, &profiles, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	if err := s.attachBranches(ctx, profiles); err != nil {
		return nil, err
	}

	out := make([]models.NearbyProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, models.NearbyProfile{GovernmentProfile: p, Distance: best[p.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Follow subscribes userID to a profile.
func (s *GovernmentService) Follow(ctx context.Context, profileID, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO government_follows (profile_id, user_id, created_at) VALUES (?, ?, ?)`, profileID, userID, s.now())
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return ErrAlreadyFollowing
	case strings.Contains(err.Error(), "FOREIGN KEY constraint failed"):
		return ErrNotFound
	default:
		return fmt.Errorf("follow profile: %w", err)
	}
}

// Unfollow removes a subscription.
func (s *GovernmentService) Unfollow(ctx context.Context, profileID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM government_follows WHERE profile_id = ? AND user_id = ?`, profileID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Following lists the profiles a user follows.
func (s *GovernmentService) Following(ctx context.Context, userID string) ([]models.GovernmentProfile, error) {
	profiles := []models.GovernmentProfile{}
	err := s.db.SelectContext(ctx, &profiles, profileSelect+`
		JOIN government_follows gf ON gf.profile_id = g.id
		WHERE gf.user_id = ? ORDER BY g.name`, userID)
	if err != nil {
		return nil, err
	}
	return profiles, s.attachBranches(ctx, profiles)
}
