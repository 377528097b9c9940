package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// MaintenanceServiceProvider defines the housekeeping jobs run by the scheduler.
type MaintenanceServiceProvider interface {
	ClearExpiredOTPs(ctx context.Context) (int64, error)
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
	ReleaseExpiredLocks(ctx context.Context) (int64, error)
	PruneActivityLogs(ctx context.Context) (int64, error)
}

// MaintenanceService removes stale credential state and old activity logs.
type MaintenanceService struct {
	db        *sqlx.DB
	activity  ActivityServiceProvider
	retention time.Duration
	now       func() time.Time
}

// NewMaintenanceService creates a new MaintenanceService. Activity logs older
// than retention are pruned; zero keeps them forever.
func NewMaintenanceService(db *sqlx.DB, activity ActivityServiceProvider, retention time.Duration) *MaintenanceService {
	return &MaintenanceService{db: db, activity: activity, retention: retention, now: func() time.Time { return time.Now().UTC() }}
}

// ClearExpiredOTPs drops verification codes past their expiry.
func (s *MaintenanceService) ClearExpiredOTPs(ctx context.Context) (int64, error) {
	return s.exec(ctx, `UPDATE users SET otp = NULL, otp_expires_at = NULL WHERE otp IS NOT NULL AND otp_expires_at < ?`)
}

// ClearExpiredResetTokens drops password reset tokens past their expiry.
func (s *MaintenanceService) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	return s.exec(ctx, `UPDATE users SET reset_token = NULL, reset_token_expiry = NULL WHERE reset_token IS NOT NULL AND reset_token_expiry < ?`)
}

// ReleaseExpiredLocks clears lock timestamps that have passed. The failed
// attempt counter is left alone; only a successful login resets it.
func (s *MaintenanceService) ReleaseExpiredLocks(ctx context.Context) (int64, error) {
	return s.exec(ctx, `UPDATE users SET lock_until = NULL WHERE lock_until IS NOT NULL AND lock_until <= ?`)
}

func (s *MaintenanceService) PruneActivityLogs(ctx context.Context) (int64, error) {
	return s.activity.Prune(ctx, s.retention)
}

func (s *MaintenanceService) exec(ctx context.Context, query string) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, s.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
