package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/sajilotantra/sajilotantra-be/internal/websocket"
)

// NotificationServiceProvider defines the interface for notification services.
type NotificationServiceProvider interface {
	Notify(ctx context.Context, userID, title, description string) (models.Notification, error)
	Broadcast(ctx context.Context, title, description string) (int, error)
	ListForUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

// NotificationService persists notifications and pushes them to connected clients.
type NotificationService struct {
	db        *sqlx.DB
	publisher websocket.Publisher
	now       func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(db *sqlx.DB, publisher websocket.Publisher) *NotificationService {
	return &NotificationService{db: db, publisher: publisher, now: func() time.Time { return time.Now().UTC() }}
}

// Notify stores a notification for userID and pushes it in real time.
func (s *NotificationService) Notify(ctx context.Context, userID, title, description string) (models.Notification, error) {
	title, description = strings.TrimSpace(title), strings.TrimSpace(description)
	if title == "" || description == "" {
		return models.Notification{}, Invalid("Title and description are required")
	}
	n := models.Notification{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Description: description,
		CreatedAt:   s.now(),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, description, is_read, created_at)
		VALUES (:id, :user_id, :title, :description, :is_read, :created_at)`, &n)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.Notification{}, fmt.Errorf("recipient %s: %w", userID, ErrNotFound)
		}
		return models.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	s.push(ctx, n)
	return n, nil
}

// Broadcast sends the same notification to every user.
func (s *NotificationService) Broadcast(ctx context.Context, title, description string) (int, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM users`); err != nil {
		return 0, fmt.Errorf("list recipients: %w", err)
	}
	sent := 0
	for _, id := range ids {
		if _, err := s.Notify(ctx, id, title, description); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// push is best-effort: a recipient without a live connection sees the
// notification next time they list them.
func (s *NotificationService) push(ctx context.Context, n models.Notification) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishToUser(ctx, n.UserID, websocket.EventNotification, n); err != nil {
		log.Warn().Err(err).Str("user_id", n.UserID).Msg("Failed to push notification")
	}
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	out := []models.Notification{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, user_id, title, description, is_read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	return out, err
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
