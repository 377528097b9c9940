package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := NewMemory(t.Name())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Subset(t, tables, []string{
		"users", "posts", "post_likes", "post_comments", "government_profiles",
		"government_branches", "government_follows", "guidances", "guidance_tracking",
		"notifications", "feedbacks", "payments", "activity_logs",
	})
}

func TestForeignKeysEnforced(t *testing.T) {
	db, err := NewMemory(t.Name())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	_, err = db.Exec(`INSERT INTO post_likes (post_id, user_id, created_at) VALUES ('missing', 'missing', CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestMigrateAddsNewColumnsToOldTables(t *testing.T) {
	db, err := NewMemory(t.Name())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE users (id TEXT NOT NULL PRIMARY KEY, email TEXT NOT NULL, reset_token TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO users (id, email) VALUES ('u1', 'ram@example.com')`)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var step int64
	require.NoError(t, db.Get(&step, `SELECT mfa_last_step FROM users WHERE id = 'u1'`))
	assert.Equal(t, int64(0), step)
}
