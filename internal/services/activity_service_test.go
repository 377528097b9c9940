package services

import (
	"time"

	"github.com/sajilotantra/sajilotantra-be/internal/audit"
	"github.com/sajilotantra/sajilotantra-be/internal/models"
)

func (s *ServiceSuite) TestActivityLogs() {
	svc := NewActivityService(audit.NewSQLStore(s.db))

	_, err := svc.CreateLog(s.ctx, ActivityInput{Action: models.ActionLogin})
	var verr *ValidationError
	s.ErrorAs(err, &verr)
	_, err = svc.CreateLog(s.ctx, ActivityInput{Action: "JUMP", EntityType: models.EntityUser})
	s.ErrorAs(err, &verr)

	entry, err := svc.CreateLog(s.ctx, ActivityInput{
		UserID: "u1", Action: models.ActionDownload, EntityType: models.EntityGuidance, EntityID: "g1",
		Metadata: map[string]interface{}{"file": "form.pdf"},
	})
	s.Require().NoError(err)
	s.Equal(models.StatusSuccess, entry.Status)

	_, err = svc.CreateLog(s.ctx, ActivityInput{UserID: "u2", Action: models.ActionView, EntityType: models.EntityPost, Status: models.StatusFailure})
	s.Require().NoError(err)

	mine, page, err := svc.ListForUser(s.ctx, "u1", 1, 10)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("form.pdf", mine[0].Metadata["file"])
	s.Equal(int64(1), page.Total)

	_, _, err = svc.List(s.ctx, models.ActivityFilter{Action: "JUMP"})
	s.ErrorAs(err, &verr)
	start, end := time.Now(), time.Now().Add(-time.Hour)
	_, _, err = svc.List(s.ctx, models.ActivityFilter{StartDate: &start, EndDate: &end})
	s.ErrorAs(err, &verr)

	all, _, err := svc.List(s.ctx, models.ActivityFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	stats, err := svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Len(stats, 2)

	n, err := svc.Prune(s.ctx, 0)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestMaintenanceJobs() {
	user, _ := s.register("sita@example.com")
	activity := NewActivityService(audit.NewSQLStore(s.db))
	svc := NewMaintenanceService(s.db, activity, time.Hour)

	n, err := svc.ClearExpiredOTPs(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	svc.now = func() time.Time { return time.Now().UTC().Add(11 * time.Minute) }
	n, err = svc.ClearExpiredOTPs(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	stored, err := s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Nil(stored.OTP)

	past := time.Now().UTC().Add(-time.Minute)
	_, err = s.db.Exec(`UPDATE users SET lock_until = ?, failed_login_attempts = 5, reset_token = 'x', reset_token_expiry = ? WHERE id = ?`, past, past, user.ID)
	s.Require().NoError(err)

	n, err = svc.ReleaseExpiredLocks(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	n, err = svc.ClearExpiredResetTokens(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	stored, err = s.users.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Nil(stored.LockUntil)
	s.Nil(stored.ResetToken)
	s.Equal(5, stored.FailedLoginAttempts)

	s.Require().NoError(activity.store.Append(s.ctx, models.ActivityLog{
		ID: "old", Action: models.ActionView, EntityType: models.EntitySystem, Status: models.StatusSuccess,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}))
	n, err = svc.PruneActivityLogs(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *ServiceSuite) TestFeedback() {
	svc := NewFeedbackService(s.db)

	_, err := svc.Submit(s.ctx, FeedbackInput{Category: "Bug"})
	var verr *ValidationError
	s.ErrorAs(err, &verr)

	user := s.verifiedUser("sita@example.com")
	f, err := svc.Submit(s.ctx, FeedbackInput{UserID: user.ID, Category: "Bug", Feedback: "Map does not load", Files: []string{"/uploads/feedback/a.png"}})
	s.Require().NoError(err)
	s.Require().NotNil(f.UserID)

	_, err = svc.Submit(s.ctx, FeedbackInput{Category: "Idea", Feedback: "Dark mode"})
	s.Require().NoError(err)

	all, err := svc.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *ServiceSuite) TestNotifications() {
	a := s.verifiedUser("a@example.com")
	b := s.verifiedUser("b@example.com")

	_, err := s.notifications.Notify(s.ctx, a.ID, "", "x")
	var verr *ValidationError
	s.ErrorAs(err, &verr)
	_, err = s.notifications.Notify(s.ctx, "missing", "t", "d")
	s.ErrorIs(err, ErrNotFound)

	sent, err := s.notifications.Broadcast(s.ctx, "Maintenance", "Tonight at 10pm")
	s.Require().NoError(err)
	s.Equal(2, sent)
	s.Len(s.publisher.forUser(b.ID), 1)

	list, err := s.notifications.ListForUser(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.False(list[0].Read)

	s.ErrorIs(s.notifications.MarkRead(s.ctx, b.ID, list[0].ID), ErrNotFound)
	s.Require().NoError(s.notifications.MarkRead(s.ctx, a.ID, list[0].ID))
	list, err = s.notifications.ListForUser(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(list[0].Read)
}
