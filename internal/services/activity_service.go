package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// ActivityInput is a log entry submitted through the API.
type ActivityInput struct {
	UserID     string
	Action     models.Action
	EntityType models.EntityType
	EntityID   string
	Status     models.ActivityStatus
	IPAddress  string
	UserAgent  string
	Metadata   map[string]interface{}
}

// ActivityServiceProvider defines the interface for activity log services.
type ActivityServiceProvider interface {
	CreateLog(ctx context.Context, in ActivityInput) (models.ActivityLog, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, models.Pagination, error)
	ListForUser(ctx context.Context, userID string, page, limit int) ([]models.ActivityLog, models.Pagination, error)
	Stats(ctx context.Context) ([]models.ActivityStat, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// ActivityService provides business logic over the activity log store.
type ActivityService struct {
	store audit.Store
	now   func() time.Time
}

// NewActivityService creates a new ActivityService.
func NewActivityService(store audit.Store) *ActivityService {
	return &ActivityService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// CreateLog validates and stores a custom log entry.
func (s *ActivityService) CreateLog(ctx context.Context, in ActivityInput) (models.ActivityLog, error) {
	if in.Action == "" || in.EntityType == "" {
		return models.ActivityLog{}, Invalid("Action and entityType are required")
	}
	if !in.Action.Valid() {
		return models.ActivityLog{}, Invalid("Invalid action: %s", in.Action)
	}
	if !in.EntityType.Valid() {
		return models.ActivityLog{}, Invalid("Invalid entityType: %s", in.EntityType)
	}
	if in.Status == "" {
		in.Status = models.StatusSuccess
	}
	if !in.Status.Valid() {
		return models.ActivityLog{}, Invalid("Invalid status: %s", in.Status)
	}

	entry := models.ActivityLog{
		ID:         uuid.New().String(),
		Action:     in.Action,
		EntityType: in.EntityType,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Status:     in.Status,
		Metadata:   models.JSONMap(in.Metadata),
		CreatedAt:  s.now(),
	}
	if entry.Metadata == nil {
		entry.Metadata = models.JSONMap{}
	}
	if in.UserID != "" {
		entry.UserID = &in.UserID
	}
	if in.EntityID != "" {
		entry.EntityID = &in.EntityID
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return models.ActivityLog{}, err
	}
	return entry, nil
}

// List returns a page of logs matching filter, newest first.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, models.Pagination, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, models.Pagination{}, Invalid("Invalid action: %s", filter.Action)
	}
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		return nil, models.Pagination{}, Invalid("Invalid entityType: %s", filter.EntityType)
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, models.Pagination{}, Invalid("endDate must not be before startDate")
	}
	return s.store.List(ctx, filter)
}

// ListForUser returns the caller's own logs.
func (s *ActivityService) ListForUser(ctx context.Context, userID string, page, limit int) ([]models.ActivityLog, models.Pagination, error) {
	return s.store.List(ctx, models.ActivityFilter{UserID: userID, Page: page, Limit: limit})
}

func (s *ActivityService) Stats(ctx context.Context) ([]models.ActivityStat, error) {
	return s.store.Stats(ctx)
}

// Prune deletes logs older than retention.
func (s *ActivityService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.store.DeleteBefore(ctx, s.now().Add(-retention))
}
