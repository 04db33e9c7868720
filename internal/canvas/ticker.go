package canvas

import (
	"context"
	"time"
)

// RunPeriodicTicks requests a rebuild at every :00 and :30 wall-clock
// boundary until ctx is cancelled (spec §4.12: "a periodic tick every
// 30 minutes at :00 and :30").
func (d *Dashboard) RunPeriodicTicks(ctx context.Context) {
	for {
		next := nextHalfHourBoundary(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			d.RequestUpdate(ctx, "periodic_tick", false)
		}
	}
}

func nextHalfHourBoundary(now time.Time) time.Time {
	minute := now.Minute()
	var targetMinute int
	switch {
	case minute < 30:
		targetMinute = 30
	default:
		targetMinute = 60
	}
	base := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	return base.Add(time.Duration(targetMinute) * time.Minute)
}
