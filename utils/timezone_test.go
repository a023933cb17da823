package utils

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func mustLoadLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return loc
}

func TestDaysBetween(t *testing.T) {
	loc := time.UTC
	a := time.Date(2025, time.June, 20, 0, 0, 0, 0, loc)
	if got := DaysBetween(a, a, loc); got != 0 {
		t.Errorf("same day = %d, want 0", got)
	}
	if got := DaysBetween(a, a.AddDate(0, 0, 1), loc); got != 1 {
		t.Errorf("consecutive days = %d, want 1", got)
	}
	if got := DaysBetween(a, a.AddDate(0, 0, 5), loc); got != 5 {
		t.Errorf("five days = %d, want 5", got)
	}
}

// US DST began 2025-03-09 at 02:00 and ended 2025-11-02, making those local
// days 23 and 25 hours long. Day counting must stay calendar-based.
func TestDaysBetween_AcrossDSTTransitions(t *testing.T) {
	ny := mustLoadLocation(t, "America/New_York")

	springBefore := time.Date(2025, time.March, 9, 0, 0, 0, 0, ny)
	springAfter := time.Date(2025, time.March, 10, 0, 0, 0, 0, ny)
	if got := DaysBetween(springBefore, springAfter, ny); got != 1 {
		t.Errorf("across spring-forward = %d, want 1", got)
	}

	fallBefore := time.Date(2025, time.November, 2, 0, 0, 0, 0, ny)
	fallAfter := time.Date(2025, time.November, 3, 0, 0, 0, 0, ny)
	if got := DaysBetween(fallBefore, fallAfter, ny); got != 1 {
		t.Errorf("across fall-back = %d, want 1", got)
	}
}

func TestNextMidnight_SpringForwardDayIsShort(t *testing.T) {
	ny := mustLoadLocation(t, "America/New_York")
	evening := time.Date(2025, time.March, 9, 22, 0, 0, 0, ny)
	next := NextMidnight(evening, ny)
	want := time.Date(2025, time.March, 10, 0, 0, 0, 0, ny)
	if !next.Equal(want) {
		t.Errorf("next midnight = %v, want %v", next, want)
	}
}

func TestSameDay(t *testing.T) {
	loc := time.UTC
	morning := time.Date(2025, time.June, 20, 8, 0, 0, 0, loc)
	night := time.Date(2025, time.June, 20, 23, 30, 0, 0, loc)
	if !SameDay(morning, night, loc) {
		t.Error("expected same calendar day")
	}
	if SameDay(morning, morning.AddDate(0, 0, 1), loc) {
		t.Error("expected different calendar days")
	}
}
