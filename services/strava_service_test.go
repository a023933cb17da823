package services

import (
	"errors"
	"testing"
	"time"
)

func validActivity() ExternalActivity {
	return ExternalActivity{
		ExternalID:     987654321,
		Type:           "Run",
		DistanceMeters: 5000,
		OccurredAt:     time.Date(2025, time.June, 20, 7, 15, 0, 0, time.UTC),
	}
}

func TestValidateExternalActivity(t *testing.T) {
	if err := ValidateExternalActivity(validActivity()); err != nil {
		t.Fatalf("valid activity rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ExternalActivity)
	}{
		{"zero external id", func(a *ExternalActivity) { a.ExternalID = 0 }},
		{"negative external id", func(a *ExternalActivity) { a.ExternalID = -5 }},
		{"empty type", func(a *ExternalActivity) { a.Type = "" }},
		{"negative distance", func(a *ExternalActivity) { a.DistanceMeters = -1 }},
		{"zero timestamp", func(a *ExternalActivity) { a.OccurredAt = time.Time{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			act := validActivity()
			tc.mutate(&act)
			if err := ValidateExternalActivity(act); !errors.Is(err, ErrInvalidExternalActivity) {
				t.Errorf("expected ErrInvalidExternalActivity, got %v", err)
			}
		})
	}
}

func TestQualifiesForDistanceQuests(t *testing.T) {
	for _, typ := range []string{"Run", "run", "TrailRun", "VirtualRun"} {
		if !QualifiesForDistanceQuests(typ) {
			t.Errorf("expected %q to qualify", typ)
		}
	}
	for _, typ := range []string{"Ride", "Swim", "Walk", ""} {
		if QualifiesForDistanceQuests(typ) {
			t.Errorf("expected %q not to qualify", typ)
		}
	}
}

func TestActivityXP(t *testing.T) {
	act := validActivity()
	if got := activityXP(act); got != 50 {
		t.Errorf("5000m = %d XP, want 50", got)
	}
	act.DistanceMeters = 99
	if got := activityXP(act); got != 0 {
		t.Errorf("99m = %d XP, want 0", got)
	}
	act.DistanceMeters = 0
	if got := activityXP(act); got != 0 {
		t.Errorf("0m = %d XP, want 0", got)
	}
}
