package audit

import (
	"testing"
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		method, pattern string
		want            Route
	}{
		{"POST", "/api/users/login", Route{models.ActionLogin, models.EntityUser}},
		{"POST", "/api/posts/", Route{models.ActionUpload, models.EntityPost}},
		{"GET", "/api/posts/{id}", Route{models.ActionView, models.EntityPost}},
		{"DELETE", "/api/guidances/{id}", Route{models.ActionDelete, models.EntityGuidance}},
		{"PUT", "/api/government/{id}", Route{models.ActionUpdate, models.EntityGovernment}},
		{"DELETE", "/admin/api/resources/{resource}/{id}", Route{models.ActionAdmin, models.EntitySystem}},
		{"GET", "/not/mapped", Route{models.ActionView, models.EntitySystem}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.method, tt.pattern))
		})
	}
}

func TestRedactNested(t *testing.T) {
	in := map[string]interface{}{
		"email": "a@example.np",
		"Password": "x",
		"nested": []interface{}{map[string]interface{}{"newPassword": "y", "ok": 1.0}},
	}
	out := Redact(in).(map[string]interface{})
	assert.Equal(t, redacted, out["Password"])
	assert.Equal(t, "a@example.np", out["email"])
	inner := out["nested"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, redacted, inner["newPassword"])
	assert.Equal(t, 1.0, inner["ok"])
}

func TestMergeStats(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	stats := MergeStats([]StatRow{
		{models.ActionLogin, models.EntityUser, models.StatusSuccess, 3, t1},
		{models.ActionLogin, models.EntityUser, models.StatusFailure, 2, t2},
		{models.ActionView, models.EntityPost, models.StatusSuccess, 9, t1},
	})

	assert.Len(t, stats, 2)
	assert.Equal(t, models.ActionView, stats[0].Action)
	assert.Equal(t, int64(5), stats[1].Total)
	assert.Equal(t, int64(2), stats[1].ByStatus[models.StatusFailure])
	assert.Equal(t, t2, stats[1].LastActivity)
}

func TestPagination(t *testing.T) {
	f := models.ActivityFilter{Page: 0, Limit: 500}
	offset := NormalizePage(&f)
	assert.Equal(t, 0, offset)
	assert.Equal(t, MaxLimit, f.Limit)

	f = models.ActivityFilter{Page: 3, Limit: 10}
	assert.Equal(t, 20, NormalizePage(&f))
	assert.Equal(t, models.Pagination{Total: 21, Page: 3, Limit: 10, Pages: 3}, NewPagination(f, 21))
}
