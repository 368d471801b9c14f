package util

import (
	"math"
	"time"
)

// AgeMinutes is the time elapsed from then to now in minutes, rounded to two places.
// A zero then yields 0.
func AgeMinutes(then, now time.Time) float64 {
	if then.IsZero() {
		return 0
	}
	m := now.Sub(then).Minutes()
	if m < 0 {
		m = 0
	}
	return math.Round(m*100) / 100
}

// SessionWindow returns a calendar window ending at now that holds at least
// the given number of trading sessions across weekends and holidays.
func SessionWindow(now time.Time, sessions int) (time.Time, time.Time) {
	return now.AddDate(0, 0, -(sessions*2 + 7)), now
}
