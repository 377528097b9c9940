//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func TestMongoStore(t *testing.T) {
	ctx := context.Background()
	container, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := NewMongoStore(ctx, uri, "audit_test")
	require.NoError(t, err)
	defer store.Close(ctx)

	user := "user-1"
	now := time.Now().UTC().Truncate(time.Millisecond)
	entries := []models.ActivityLog{
		{ID: "a", UserID: &user, Action: models.ActionLogin, EntityType: models.EntityUser, Status: models.StatusSuccess, Metadata: models.JSONMap{"url": "/api/users/login"}, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "b", UserID: &user, Action: models.ActionLogin, EntityType: models.EntityUser, Status: models.StatusFailure, CreatedAt: now.Add(-time.Hour)},
		{ID: "c", Action: models.ActionView, EntityType: models.EntityPost, Status: models.StatusSuccess, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	logs, page, err := store.List(ctx, models.ActivityFilter{UserID: user, Limit: 1, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, int64(2), page.Pages)
	require.Len(t, logs, 1)
	assert.Equal(t, "b", logs[0].ID)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.ActionLogin, stats[0].Action)
	assert.Equal(t, int64(2), stats[0].Total)

	deleted, err := store.DeleteBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
