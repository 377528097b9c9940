// Package audit records an activity log entry for every API request.
package audit

import (
	"context"
	"sort"
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

// Store persists and queries activity logs.
type Store interface {
	Append(ctx context.Context, entry models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, models.Pagination, error)
	Stats(ctx context.Context) ([]models.ActivityStat, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Page limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizePage clamps page and limit and returns the row offset.
func NormalizePage(f *models.ActivityFilter) int {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return (f.Page - 1) * f.Limit
}

// NewPagination builds the pagination block for a filter and total count.
func NewPagination(f models.ActivityFilter, total int64) models.Pagination {
	pages := total / int64(f.Limit)
	if total%int64(f.Limit) != 0 {
		pages++
	}
	return models.Pagination{Total: total, Page: f.Page, Limit: f.Limit, Pages: pages}
}

// StatRow is one (action, entity, status) group as counted by a store.
type StatRow struct {
	Action     models.Action
	EntityType models.EntityType
	Status     models.ActivityStatus
	Count      int64
	Last       time.Time
}

// MergeStats folds per-status rows into one stat per action and entity,
// sorted by total descending.
func MergeStats(rows []StatRow) []models.ActivityStat {
	type key struct {
		a models.Action
		e models.EntityType
	}
	byKey := map[key]*models.ActivityStat{}
	var order []key
	for _, r := range rows {
		k := key{r.Action, r.EntityType}
		st, ok := byKey[k]
		if !ok {
			st = &models.ActivityStat{Action: r.Action, EntityType: r.EntityType, ByStatus: map[models.ActivityStatus]int64{}}
			byKey[k] = st
			order = append(order, k)
		}
		st.Total += r.Count
		st.ByStatus[r.Status] += r.Count
		if r.Last.After(st.LastActivity) {
			st.LastActivity = r.Last
		}
	}
	out := make([]models.ActivityStat, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].EntityType < out[j].EntityType
	})
	return out
}
