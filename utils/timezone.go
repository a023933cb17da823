package utils

import (
	"log"
	"time"
)

// LoadUserLocation resolves an IANA timezone name, falling back to UTC when
// the profile carries an empty or unknown value.
func LoadUserLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("⚠️  Unknown timezone %q, falling back to UTC", name)
		return time.UTC
	}
	return loc
}

// DayStart truncates t to midnight in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the first midnight in loc strictly after t.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return DayStart(t, loc).AddDate(0, 0, 1)
}

// NextWeekBoundary returns the next Monday midnight in loc strictly after t.
func NextWeekBoundary(t time.Time, loc *time.Location) time.Time {
	day := DayStart(t, loc)
	daysUntilMonday := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	if daysUntilMonday == 0 {
		daysUntilMonday = 7
	}
	return day.AddDate(0, 0, daysUntilMonday)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayStart(a, loc).Equal(DayStart(b, loc))
}

// DaysBetween returns the number of whole calendar days from a to b in loc.
// Same day yields 0, consecutive days yield 1. Counted over civil dates, not
// durations: a DST transition makes a local day 23 or 25 hours long, so
// dividing midnight-to-midnight gaps by 24h undercounts across spring-forward.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}
