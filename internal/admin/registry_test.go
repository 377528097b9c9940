package admin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sajilotantra/sajilotantra-be/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*Registry, *sqlx.DB) {
	t.Helper()
	db, err := database.NewMemory("admin-" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	reg, err := NewRegistry(context.Background(), db, DefaultResources())
	require.NoError(t, err)
	return reg, db
}

func insertUser(t *testing.T, db *sqlx.DB, id, email string, created time.Time) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (id, fname, lname, email, password_hash, otp, mfa_secret, password_history_json,
			password_changed_at, created_at, updated_at)
		VALUES (?, 'Ram', 'Thapa', ?, 'hash', '123abc', 'SECRET', '["hash"]', ?, ?, ?)`,
		id, email, created, created, created)
	require.NoError(t, err)
}

func TestUserSecretsNeverListed(t *testing.T) {
	reg, db := newRegistry(t)
	insertUser(t, db, "u1", "ram@example.com", time.Now().UTC())

	page, err := reg.List(context.Background(), "users", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)

	rec := page.Records[0]
	assert.Equal(t, "ram@example.com", rec["email"])
	for _, secret := range []string{"password_hash", "otp", "otp_expires_at", "reset_token",
		"reset_token_expiry", "mfa_secret", "password_history_json", "password_history"} {
		assert.NotContains(t, rec, secret)
	}

	got, err := reg.Get(context.Background(), "users", "u1")
	require.NoError(t, err)
	assert.NotContains(t, got, "password_hash")
	assert.NotContains(t, got, "mfa_secret")

	for _, res := range reg.Resources() {
		if res.Name == "users" {
			assert.NotContains(t, res.Columns, "password_hash")
			assert.Contains(t, res.Columns, "email")
		}
	}
}

func TestListPagination(t *testing.T) {
	reg, db := newRegistry(t)
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		insertUser(t, db, uuid.NewString(), uuid.NewString()+"@example.com", base.Add(time.Duration(i)*time.Minute))
	}

	page, err := reg.List(context.Background(), "users", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, 2, page.Page)

	page, err = reg.List(context.Background(), "users", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, defaultPerPage, page.PerPage)
	assert.Len(t, page.Records, 3)
}

func TestJSONColumnsAreDecoded(t *testing.T) {
	reg, db := newRegistry(t)
	insertUser(t, db, "u1", "ram@example.com", time.Now().UTC())
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO posts (id, user_id, caption, category, images_json, created_at, updated_at)
		VALUES ('p1', 'u1', 'Road repair', 'infrastructure', '["a.png","b.png"]', ?, ?)`, now, now)
	require.NoError(t, err)

	rec, err := reg.Get(context.Background(), "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a.png", "b.png"}, rec["images"])
	assert.NotContains(t, rec, "images_json")
}

func TestDeleteAndDashboard(t *testing.T) {
	reg, db := newRegistry(t)
	insertUser(t, db, "u1", "ram@example.com", time.Now().UTC())
	insertUser(t, db, "u2", "sita@example.com", time.Now().UTC())

	counts, err := reg.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["users"])
	assert.Equal(t, int64(0), counts["posts"])

	require.NoError(t, reg.Delete(context.Background(), "users", "u1"))
	assert.ErrorIs(t, reg.Delete(context.Background(), "users", "u1"), ErrRecordNotFound)

	_, err = reg.Get(context.Background(), "users", "u1")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	counts, err = reg.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["users"])
}

func TestUnknownResource(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.List(context.Background(), "servers", 1, 10)
	assert.ErrorIs(t, err, ErrUnknownResource)
	_, err = reg.Get(context.Background(), "servers", "x")
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestCreateAndUpdateRecords(t *testing.T) {
	reg, db := newRegistry(t)
	insertUser(t, db, "u1", "ram@example.com", time.Now().UTC())
	ctx := context.Background()

	rec, err := reg.Create(ctx, "notifications", map[string]interface{}{
		"user_id": "u1", "title": "Office closed", "description": "Closed on Friday",
	})
	require.NoError(t, err)
	id, ok := rec["id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, id)
	assert.Equal(t, "Office closed", rec["title"])
	assert.NotNil(t, rec["created_at"])

	rec, err = reg.Update(ctx, "notifications", id, map[string]interface{}{"is_read": true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec["is_read"])
	assert.Equal(t, "Office closed", rec["title"])

	rec, err = reg.Create(ctx, "feedbacks", map[string]interface{}{
		"category": "service", "feedback": "Queue was long", "files": []interface{}{"a.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a.png"}, rec["files"])

	_, err = reg.Update(ctx, "notifications", "missing", map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestHiddenColumnsAreNotWritable(t *testing.T) {
	reg, db := newRegistry(t)
	insertUser(t, db, "u1", "ram@example.com", time.Now().UTC())
	ctx := context.Background()

	for _, field := range []string{"password_hash", "mfa_secret", "otp", "reset_token", "password_history", "password_history_json"} {
		_, err := reg.Update(ctx, "users", "u1", map[string]interface{}{field: "attacker"})
		assert.ErrorIs(t, err, ErrInvalidRecord, field)
	}

	var hash, secret string
	require.NoError(t, db.Get(&hash, `SELECT password_hash FROM users WHERE id = 'u1'`))
	require.NoError(t, db.Get(&secret, `SELECT mfa_secret FROM users WHERE id = 'u1'`))
	assert.Equal(t, "hash", hash)
	assert.Equal(t, "SECRET", secret)

	rec, err := reg.Update(ctx, "users", "u1", map[string]interface{}{"is_verified": true, "bio": "Teacher"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec["is_verified"])
	assert.Equal(t, "Teacher", rec["bio"])
	assert.NotContains(t, rec, "password_hash")

	_, err = reg.Update(ctx, "users", "u1", map[string]interface{}{"id": "u2"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestWriteRestrictions(t *testing.T) {
	reg, db := newRegistry(t)
	insertUser(t, db, "u1", "ram@example.com", time.Now().UTC())
	ctx := context.Background()

	_, err := reg.Create(ctx, "users", map[string]interface{}{"email": "x@example.com"})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = reg.Create(ctx, "activity-logs", map[string]interface{}{"action": "LOGIN"})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = reg.Update(ctx, "activity-logs", "x", map[string]interface{}{"action": "LOGIN"})
	assert.ErrorIs(t, err, ErrReadOnly)

	_, err = reg.Create(ctx, "notifications", map[string]interface{}{"user_id": "u1"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = reg.Create(ctx, "notifications", map[string]interface{}{})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = reg.Create(ctx, "notifications", map[string]interface{}{
		"user_id": "u1", "title": map[string]interface{}{"nested": true}, "description": "d",
	})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
