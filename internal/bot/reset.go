package bot

import (
	"context"
	"time"
)

// RunWeeklyReset restores every recorded user quota to the configured
// weekly default at Monday 00:00 local time, forever.
func (b *Bot) RunWeeklyReset(ctx context.Context) {
	for {
		wait := time.Until(nextMonday(time.Now()))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		count := b.store.ResetAllUserLimits(b.cfg.UserLimits)
		if count == 0 {
			b.log.Info("无用户下载数据可供重置")
			continue
		}
		b.log.Info("已重置用户每周下载次数", "users", count, "limit", b.cfg.UserLimits)
	}
}

func nextMonday(now time.Time) time.Time {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	next := now.AddDate(0, 0, days)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}
