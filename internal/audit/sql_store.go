package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/database"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// SQLStore keeps activity logs in the activity_logs table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a store over the application database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, entry models.ActivityLog) error {
	entry.CreatedAt = entry.CreatedAt.UTC()
	if entry.Metadata == nil {
		entry.Metadata = models.JSONMap{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, entity_type, entity_id, ip_address, user_agent, status, metadata_json, created_at)
		VALUES (:id, :user_id, :action, :entity_type, :entity_id, :ip_address, :user_agent, :status, :metadata_json, :created_at)`, &entry)
	return err
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, f models.ActivityFilter) ([]models.ActivityLog, models.Pagination, error) {
	offset := NormalizePage(&f)
	where, args := sqlFilter(f)

	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM activity_logs`+where, args...); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("count activity logs: %w", err)
	}

	logs := []models.ActivityLog{}
	query := `SELECT id, user_id, action, entity_type, entity_id, ip_address, user_agent, status, metadata_json, created_at
		FROM activity_logs` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &logs, query, append(args, f.Limit, offset)...); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("select activity logs: %w", err)
	}
	return logs, NewPagination(f, total), nil
}

func sqlFilter(f models.ActivityFilter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.StartDate != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.StartDate.UTC())
	}
	if f.EndDate != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.EndDate.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Stats implements Store.
func (s *SQLStore) Stats(ctx context.Context) ([]models.ActivityStat, error) {
	var rows []struct {
		Action     models.Action         `db:"action"`
		EntityType models.EntityType     `db:"entity_type"`
		Status     models.ActivityStatus `db:"status"`
		Count      int64                 `db:"count"`
		Last       string                `db:"last"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT action, entity_type, status, COUNT(*) AS count, MAX(created_at) AS last
		FROM activity_logs GROUP BY action, entity_type, status`)
	if err != nil {
		return nil, fmt.Errorf("aggregate activity logs: %w", err)
	}

	groups := make([]StatRow, 0, len(rows))
	for _, r := range rows {
		last, err := time.Parse(database.TimeLayout, r.Last)
		if err != nil {
			return nil, fmt.Errorf("parse last activity %q: %w", r.Last, err)
		}
		groups = append(groups, StatRow{Action: r.Action, EntityType: r.EntityType, Status: r.Status, Count: r.Count, Last: last.UTC()})
	}
	return MergeStats(groups), nil
}

// DeleteBefore implements Store.
func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
