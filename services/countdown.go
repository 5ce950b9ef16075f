package services

import (
	"fmt"
	"time"
)

// Remaining returns max(0, start + duration - now)
func Remaining(start time.Time, duration time.Duration, now time.Time) time.Duration {
	left := start.Add(duration).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// FormatRemaining renders d as HH:MM:SS, truncated to whole seconds.
// Hours are not capped at 99.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
