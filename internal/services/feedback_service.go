package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// FeedbackInput is a submitted feedback. UserID is empty for anonymous submissions.
type FeedbackInput struct {
	UserID     string
	Category   string
	Suggestion string
	Feedback   string
	Files      []string
}

// FeedbackServiceProvider defines the interface for feedback services.
type FeedbackServiceProvider interface {
	Submit(ctx context.Context, in FeedbackInput) (models.Feedback, error)
	List(ctx context.Context) ([]models.Feedback, error)
}

// FeedbackService stores user feedback.
type FeedbackService struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewFeedbackService creates a new FeedbackService.
func NewFeedbackService(db *sqlx.DB) *FeedbackService {
	return &FeedbackService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *FeedbackService) Submit(ctx context.Context, in FeedbackInput) (models.Feedback, error) {
	in.Category = strings.TrimSpace(in.Category)
	in.Feedback = strings.TrimSpace(in.Feedback)
	if in.Category == "" || in.Feedback == "" {
		return models.Feedback{}, Invalid("Category and feedback are required")
	}
	f := models.Feedback{
		ID:         uuid.New().String(),
		Category:   in.Category,
		Suggestion: strings.TrimSpace(in.Suggestion),
		Feedback:   in.Feedback,
		Files:      models.StringList(in.Files),
		CreatedAt:  s.now(),
	}
	if f.Files == nil {
		f.Files = models.StringList{}
	}
	if in.UserID != "" {
		f.UserID = &in.UserID
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO feedbacks (id, user_id, category, suggestion, feedback, files_json, created_at)
		VALUES (:id, :user_id, :category, :suggestion, :feedback, :files_json, :created_at)`, &f)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	return f, nil
}

func (s *FeedbackService) List(ctx context.Context) ([]models.Feedback, error) {
	out := []models.Feedback{}
	err := s.db.SelectContext(ctx, &out, `SELECT id, user_id, category, suggestion, feedback, files_json, created_at FROM feedbacks ORDER BY created_at DESC`)
	return out, err
}
