package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sajilotantra/sajilotantra-be/internal/database"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.NewMemory("audit-" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewSQLStore(db)
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := "user-1"

	entries := []models.ActivityLog{
		{ID: "a", UserID: &user, Action: models.ActionLogin, EntityType: models.EntityUser, Status: models.StatusSuccess, Metadata: models.JSONMap{"url": "/api/users/login"}, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "b", UserID: &user, Action: models.ActionLogin, EntityType: models.EntityUser, Status: models.StatusFailure, CreatedAt: now.Add(-time.Hour)},
		{ID: "c", Action: models.ActionView, EntityType: models.EntityPost, Status: models.StatusSuccess, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	logs, page, err := store.List(ctx, models.ActivityFilter{UserID: user, Limit: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "b", logs[0].ID)
	assert.Equal(t, models.Pagination{Total: 2, Page: 1, Limit: 1, Pages: 2}, page)

	start := now.Add(-3 * time.Hour)
	logs, _, err = store.List(ctx, models.ActivityFilter{StartDate: &start})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, _, err = store.List(ctx, models.ActivityFilter{Action: models.ActionLogin, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "/api/users/login", logs[1].Metadata["url"])

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.ActionLogin, stats[0].Action)
	assert.Equal(t, int64(2), stats[0].Total)
	assert.Equal(t, int64(1), stats[0].ByStatus[models.StatusFailure])
	assert.True(t, stats[0].LastActivity.Equal(now.Add(-time.Hour)))

	n, err := store.DeleteBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
