package util

import (
	"time"
	_ "time/tzdata"
)

// Exchange is the zone the regular session is quoted in.
var Exchange = mustLoad("America/Toronto")

const (
	sessionOpen  = 9*60 + 30
	sessionClose = 16 * 60
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsMarketHours reports whether t falls on a weekday between 09:30 and 16:00
// exchange time at minute resolution, so all of 16:00 counts. Holidays are not
// considered.
func IsMarketHours(t time.Time) bool {
	local := t.In(Exchange)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= sessionOpen && m <= sessionClose
}

// SessionStart returns 00:00 exchange time on the day of t.
func SessionStart(t time.Time) time.Time {
	local := t.In(Exchange)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Exchange)
}
