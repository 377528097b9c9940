package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// GuidanceInput is the data for a new guidance.
type GuidanceInput struct {
	Title               string
	Description         string
	Category            string
	Thumbnail           string
	DocumentsRequired   []string
	CostRequired        string
	GovernmentProfileID string
}

// GuidancePatch lists the fields to change. Nil or empty means unchanged.
type GuidancePatch struct {
	Title               *string
	Description         *string
	Category            *string
	Thumbnail           *string
	DocumentsRequired   []string
	CostRequired        *string
	GovernmentProfileID *string
}

// GuidanceFilter narrows List. Search matches the title case-insensitively.
type GuidanceFilter struct {
	Category string
	Search   string
}

// GuidanceServiceProvider defines the interface for guidance services.
type GuidanceServiceProvider interface {
	Create(ctx context.Context, in GuidanceInput) (models.Guidance, error)
	List(ctx context.Context, filter GuidanceFilter) ([]models.Guidance, error)
	Get(ctx context.Context, id, viewerID string) (models.Guidance, error)
	Update(ctx context.Context, id string, patch GuidancePatch) (models.Guidance, error)
	Delete(ctx context.Context, id string) error
	Track(ctx context.Context, id, userID, document string, checked bool) error
}

// GuidanceService provides business logic for guidances and document tracking.
type GuidanceService struct {
	db         *sqlx.DB
	government GovernmentServiceProvider
	now        func() time.Time
}

// NewGuidanceService creates a new GuidanceService.
func NewGuidanceService(db *sqlx.DB, government GovernmentServiceProvider) *GuidanceService {
	return &GuidanceService{db: db, government: government, now: func() time.Time { return time.Now().UTC() }}
}

const guidanceColumns = `id, title, description, category, thumbnail, documents_required_json, cost_required,
	government_profile_id, created_at, updated_at`

// SplitDocuments turns a comma separated list into trimmed, non-empty names.
func SplitDocuments(raw string) []string {
	docs := []string{}
	for _, d := range strings.Split(raw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			docs = append(docs, d)
		}
	}
	return docs
}

// Create stores a new guidance.
func (s *GuidanceService) Create(ctx context.Context, in GuidanceInput) (models.Guidance, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if in.Title == "" || in.Description == "" || in.Category == "" || len(in.DocumentsRequired) == 0 || in.Thumbnail == "" {
		return models.Guidance{}, Invalid("All fields are required, including the thumbnail.")
	}

	now := s.now()
	g := models.Guidance{
		ID:                uuid.New().String(),
		Title:             in.Title,
		Description:       in.Description,
		Category:          in.Category,
		Thumbnail:         in.Thumbnail,
		DocumentsRequired: models.StringList(in.DocumentsRequired),
		CostRequired:      strings.TrimSpace(in.CostRequired),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if id := strings.TrimSpace(in.GovernmentProfileID); id != "" {
		g.GovernmentProfileID = &id
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO guidances (`+guidanceColumns+`)
		VALUES (:id, :title, :description, :category, :thumbnail, :documents_required_json, :cost_required,
			:government_profile_id, :created_at, :updated_at)`, &g)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.Guidance{}, Invalid("Government profile not found")
		}
		return models.Guidance{}, fmt.Errorf("insert guidance: %w", err)
	}
	return g, nil
}

// List returns guidances matching the filter, newest first.
func (s *GuidanceService) List(ctx context.Context, filter GuidanceFilter) ([]models.Guidance, error) {
	var (
		where []string
		args  []interface{}
	)
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		where = append(where, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}
	query := `SELECT ` + guidanceColumns + ` FROM guidances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	guidances := []models.Guidance{}
	if err := s.db.SelectContext(ctx, &guidances, query, args...); err != nil {
		return nil, err
	}
	return guidances, nil
}

// Get returns a guidance with its government profile and, when viewerID is
// set, the viewer's checklist state for every required document.
func (s *GuidanceService) Get(ctx context.Context, id, viewerID string) (models.Guidance, error) {
	g, err := s.get(ctx, id)
	if err != nil {
		return models.Guidance{}, err
	}
	if g.GovernmentProfileID != nil {
		profile, err := s.government.Get(ctx, *g.GovernmentProfileID)
		switch {
		case err == nil:
			g.GovernmentProfile = &profile
		case !errors.Is(err, ErrNotFound):
			return models.Guidance{}, err
		}
	}
	if viewerID == "" {
		return g, nil
	}

	var rows []models.DocumentTracking
	err = s.db.SelectContext(ctx, &rows, `SELECT document, is_checked FROM guidance_tracking WHERE guidance_id = ? AND user_id = ?`, id, viewerID)
	if err != nil {
		return models.Guidance{}, err
	}
	checked := make(map[string]bool, len(rows))
	for _, r := range rows {
		checked[r.Document] = r.IsChecked
	}
	g.Tracking = make([]models.DocumentTracking, 0, len(g.DocumentsRequired))
	for _, doc := range g.DocumentsRequired {
		g.Tracking = append(g.Tracking, models.DocumentTracking{Document: doc, IsChecked: checked[doc]})
	}
	return g, nil
}

func (s *GuidanceService) get(ctx context.Context, id string) (models.Guidance, error) {
	var g models.Guidance
	err := s.db.GetContext(ctx, &g, `SELECT `+guidanceColumns+` FROM guidances WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Guidance{}, fmt.Errorf("guidance %s: %w", id, ErrNotFound)
	}
	return g, err
}

// Update applies a partial change.
func (s *GuidanceService) Update(ctx context.Context, id string, patch GuidancePatch) (models.Guidance, error) {
	g, err := s.get(ctx, id)
	if err != nil {
		return models.Guidance{}, err
	}
	set := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&g.Title, patch.Title)
	set(&g.Description, patch.Description)
	set(&g.Category, patch.Category)
	set(&g.Thumbnail, patch.Thumbnail)
	if patch.CostRequired != nil {
		g.CostRequired = strings.TrimSpace(*patch.CostRequired)
	}
	if len(patch.DocumentsRequired) > 0 {
		g.DocumentsRequired = models.StringList(patch.DocumentsRequired)
	}
	if patch.GovernmentProfileID != nil {
		if ref := strings.TrimSpace(*patch.GovernmentProfileID); ref != "" {
			g.GovernmentProfileID = &ref
		} else {
			g.GovernmentProfileID = nil
		}
	}
	g.UpdatedAt = s.now()

	_, err = s.db.NamedExecContext(ctx, `
		UPDATE guidances SET title = :title, description = :description, category = :category,
			thumbnail = :thumbnail, documents_required_json = :documents_required_json,
			cost_required = :cost_required, government_profile_id = :government_profile_id, updated_at = :updated_at
		WHERE id = :id`, &g)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.Guidance{}, Invalid("Government profile not found")
		}
		return models.Guidance{}, fmt.Errorf("update guidance: %w", err)
	}
	return g, nil
}

// Delete removes a guidance and its tracking rows.
func (s *GuidanceService) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM guidances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Track records whether userID has the named document ready.
func (s *GuidanceService) Track(ctx context.Context, id, userID, document string, checked bool) error {
	g, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	document = strings.TrimSpace(document)
	found := false
	for _, d := range g.DocumentsRequired {
		if d == document {
			found = true
			break
		}
	}
	if !found {
		return ErrDocumentNotFound
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guidance_tracking (guidance_id, user_id, document, is_checked, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guidance_id, user_id, document) DO UPDATE SET is_checked = excluded.is_checked, updated_at = excluded.updated_at`,
		id, userID, document, checked, s.now())
	if err != nil {
		return fmt.Errorf("update tracking: %w", err)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
