package utils

import (
	"time"

	"gorm.io/gorm"

	"github.com/Carbinski/FriendGroupRanker/config"
	"github.com/Carbinski/FriendGroupRanker/models"
)

// StartClockInReaper launches a background goroutine that periodically deletes
// clock-in rows long past expiry. Expiry itself is purely time based, so this
// is hygiene rather than correctness. Reaped rows drop out of the all-time
// leaderboard, which is why the job only runs when a retention is configured.
// Best-effort: failures are logged and retried next tick.
func StartClockInReaper(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			days := config.Get().ClockInRetentionDays
			if days <= 0 {
				continue
			}
			cutoff := time.Now().AddDate(0, 0, -days)
			res := db.Where("expires_at <= ?", cutoff).Delete(&models.ClockIn{})
			if res.Error != nil {
				if Sugar != nil {
					Sugar.Warnf("clock-in reaper delete failed: %v", res.Error)
				}
				continue
			}
			if res.RowsAffected > 0 && Sugar != nil {
				Sugar.Infof("clock-in reaper removed %d rows expired before %s", res.RowsAffected, cutoff.Format(time.RFC3339))
			}
		}
	}()
}
