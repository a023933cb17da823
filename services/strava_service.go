package services

import (
	"log"
	"strings"
	"time"

	"habit-quest-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExternalActivity is the normalized shape the provider integration delivers,
// whether it arrived by webhook push or pull sync.
type ExternalActivity struct {
	ExternalID     int64     `json:"external_id"`
	Type           string    `json:"type"`
	DistanceMeters float64   `json:"distance_meters"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type IngestResult struct {
	Duplicate bool  `json:"duplicate"`
	XPAwarded int64 `json:"xp_awarded"`
}

// StravaPolicy keeps the two historically-conflated behaviors apart: awarding
// skill XP for the raw activity and feeding distance into threshold quests
// are independent toggles.
type StravaPolicy struct {
	AwardActivityXP       bool
	TriggerDistanceQuests bool
	FitnessSkillID        string
}

type StravaService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Progress *ProgressService
	Policy   StravaPolicy
}

func NewStravaService(db *gorm.DB, ledger *LedgerService, progress *ProgressService, policy StravaPolicy) *StravaService {
	return &StravaService{DB: db, Ledger: ledger, Progress: progress, Policy: policy}
}

// distanceQuestTypes is the lowercase whitelist of activity types that count
// toward distance-threshold quests. Only runs do. The evaluator filters its
// query on the same list so a newer non-qualifying activity can never satisfy
// a run-distance quest.
var distanceQuestTypes = []string{"run", "trailrun", "virtualrun"}

// QualifiesForDistanceQuests reports whether the activity type counts toward
// distance-threshold quests.
func QualifiesForDistanceQuests(activityType string) bool {
	lowered := strings.ToLower(activityType)
	for _, t := range distanceQuestTypes {
		if lowered == t {
			return true
		}
	}
	return false
}

// ValidateExternalActivity checks the normalized input contract. Malformed
// events are dropped by the caller, never retried.
func ValidateExternalActivity(act ExternalActivity) error {
	if act.ExternalID <= 0 || act.Type == "" || act.DistanceMeters < 0 || act.OccurredAt.IsZero() {
		return ErrInvalidExternalActivity
	}
	return nil
}

// activityXP converts a raw external activity into ledger XP when the
// raw-award policy is on: 1 XP per 100 meters.
func activityXP(act ExternalActivity) int64 {
	return int64(act.DistanceMeters / 100)
}

// Ingest stores one normalized external activity. Idempotent on the external
// id: re-ingesting is a no-op, not an error. XP award and quest triggering
// follow the configured policies; quest evaluation runs asynchronously so the
// provider's request is never held up by completion transactions.
func (s *StravaService) Ingest(userID string, act ExternalActivity) (*IngestResult, error) {
	if err := ValidateExternalActivity(act); err != nil {
		return nil, err
	}

	row := models.StravaActivity{
		ID:             uuid.NewString(),
		UserID:         userID,
		StravaID:       act.ExternalID,
		ActivityType:   act.Type,
		DistanceMeters: act.DistanceMeters,
		OccurredAt:     act.OccurredAt,
	}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "strava_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return &IngestResult{Duplicate: true}, nil
	}

	result := &IngestResult{}
	if s.Policy.AwardActivityXP && s.Policy.FitnessSkillID != "" {
		xp := activityXP(act)
		if xp > 0 {
			skillID := s.Policy.FitnessSkillID
			if _, err := s.Ledger.LogActivityAt(userID, &skillID, act.Type, xp, models.SourceStrava, act.OccurredAt); err != nil {
				log.Printf("❌ Failed to award activity XP for user %s: %v", userID, err)
			} else {
				result.XPAwarded = xp
			}
		}
	}

	if s.Policy.TriggerDistanceQuests && QualifiesForDistanceQuests(act.Type) {
		go func() {
			if err := s.Progress.EvaluateDistanceQuests(userID); err != nil {
				log.Printf("❌ Distance quest evaluation failed for user %s: %v", userID, err)
			}
		}()
	}
	return result, nil
}

// IngestBatch attempts every event independently; one malformed or failing
// event never aborts the rest of the batch.
func (s *StravaService) IngestBatch(userID string, acts []ExternalActivity) (stored, duplicates, dropped int) {
	for _, act := range acts {
		res, err := s.Ingest(userID, act)
		if err != nil {
			dropped++
			log.Printf("⚠️  Dropping external activity %d for user %s: %v", act.ExternalID, userID, err)
			continue
		}
		if res.Duplicate {
			duplicates++
		} else {
			stored++
		}
	}
	if stored+duplicates+dropped > 0 {
		log.Printf("📥 Ingested %d external activities for user %s (%d duplicates, %d dropped)",
			stored, userID, duplicates, dropped)
	}
	return stored, duplicates, dropped
}
