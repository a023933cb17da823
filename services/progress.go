package services

import (
	"errors"
	"log"
	"sort"
	"time"

	"habit-quest-system/models"
	"habit-quest-system/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// ProgressService derives auto-completion progress from the activity history
// and triggers completion when a rule's threshold is crossed. It never writes
// progress anywhere — quest_progress is always recomputed from the log.
type ProgressService struct {
	DB     *gorm.DB
	Clock  clockwork.Clock
	Quests *QuestService
}

func NewProgressService(db *gorm.DB, clock clockwork.Clock, quests *QuestService) *ProgressService {
	return &ProgressService{DB: db, Clock: clock, Quests: quests}
}

type ProgressState struct {
	QuestID           string     `json:"quest_id"`
	Kind              string     `json:"kind"`
	Current           int64      `json:"current"`
	Required          int64      `json:"required"`
	Satisfied         bool       `json:"satisfied"`
	CurrentStreak     int        `json:"current_streak,omitempty"`
	TotalActivities   int64      `json:"total_activities,omitempty"`
	FirstActivityDate *time.Time `json:"first_activity_date,omitempty"`
	LastActivityDate  *time.Time `json:"last_activity_date,omitempty"`
}

// CurrentStreakDays counts the run of consecutive calendar days ending today
// or yesterday. days must be distinct midnights sorted newest first. A run
// whose newest day is older than yesterday has already broken. Gaps are
// measured in civil dates so 23-hour DST days still count as one day.
func CurrentStreakDays(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}
	loc := today.Location()
	if utils.DaysBetween(days[0], today, loc) > 1 {
		return 0
	}
	streak := 1
	for i := 1; i < len(days); i++ {
		if utils.DaysBetween(days[i], days[i-1], loc) != 1 {
			break
		}
		streak++
	}
	return streak
}

// DaySpan is the inclusive day count between the first and latest qualifying
// activity, capped at the requirement.
func DaySpan(first, last time.Time, loc *time.Location, limit int64) int64 {
	span := int64(utils.DaysBetween(first, last, loc)) + 1
	if limit > 0 && span > limit {
		span = limit
	}
	return span
}

// qualifyingActivities fetches the user's non-quest-derived activity
// timestamps, scoped to the quest's skills when it has any. Quest-provenance
// rows are excluded so a quest reward can never feed its own progress rule.
func (s *ProgressService) qualifyingActivities(userID string, quest *models.Quest) ([]time.Time, error) {
	q := s.DB.Model(&models.ActivityLog{}).
		Where("user_id = ? AND source <> ?", userID, models.SourceQuest)
	if len(quest.Skills) > 0 {
		skillIDs := make([]string, len(quest.Skills))
		for i, qs := range quest.Skills {
			skillIDs[i] = qs.SkillID
		}
		q = q.Where("skill_id IN ?", skillIDs)
	}

	var stamps []time.Time
	if err := q.Order("created_at ASC").Pluck("created_at", &stamps).Error; err != nil {
		return nil, err
	}
	return stamps, nil
}

func distinctDaysDesc(stamps []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(stamps))
	var days []time.Time
	for _, ts := range stamps {
		day := utils.DayStart(ts, loc)
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}

// Evaluate computes (current, required, satisfied) for a rule-driven quest.
// Empty history is current=0, never an error; requirement 0 is always
// satisfied.
func (s *ProgressService) Evaluate(userID string, quest *models.Quest) (*ProgressState, error) {
	state := &ProgressState{
		QuestID:  quest.ID,
		Kind:     quest.CompletionType,
		Required: quest.CompletionRequirement,
	}
	if !quest.IsAutoCompleting() {
		return state, nil
	}

	profile, err := s.Quests.Ledger.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	loc := utils.LoadUserLocation(profile.Timezone)

	switch quest.CompletionType {
	case models.CompletionExternalDistance:
		// Only qualifying activity types count; a newer ride must not shadow
		// or satisfy a run-distance quest.
		var latest models.StravaActivity
		err := s.DB.Where("user_id = ? AND LOWER(activity_type) IN ?", userID, distanceQuestTypes).
			Order("occurred_at DESC").
			First(&latest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			state.Current = int64(latest.DistanceMeters)
			occurred := latest.OccurredAt
			state.LastActivityDate = &occurred
		}

	default:
		stamps, err := s.qualifyingActivities(userID, quest)
		if err != nil {
			return nil, err
		}
		if len(stamps) > 0 {
			first := stamps[0]
			last := stamps[len(stamps)-1]
			state.FirstActivityDate = &first
			state.LastActivityDate = &last
			state.TotalActivities = int64(len(stamps))

			days := distinctDaysDesc(stamps, loc)
			today := utils.DayStart(s.Clock.Now(), loc)
			state.CurrentStreak = CurrentStreakDays(days, today)

			switch quest.CompletionType {
			case models.CompletionDailyStreak:
				state.Current = int64(state.CurrentStreak)
			case models.CompletionTotalActivities:
				state.Current = state.TotalActivities
			case models.CompletionDaysWithActivity:
				state.Current = DaySpan(first, last, loc, quest.CompletionRequirement)
			}
		}
	}

	state.Satisfied = state.Required == 0 || state.Current >= state.Required
	return state, nil
}

// EvaluateAndComplete re-evaluates one rule-driven quest and completes it when
// the threshold is crossed. Re-running on the same data after a completion is
// a no-op: the availability guard turns the second attempt into
// AlreadyCompleted, which is swallowed here.
func (s *ProgressService) EvaluateAndComplete(userID string, quest *models.Quest) (*ProgressState, error) {
	state, err := s.Evaluate(userID, quest)
	if err != nil {
		return nil, err
	}
	if !quest.IsAutoCompleting() || !state.Satisfied {
		return state, nil
	}

	available, err := s.Quests.IsAvailable(userID, quest.ID)
	if err != nil {
		return nil, err
	}
	if !available {
		return state, nil
	}

	if _, err := s.Quests.completeAuto(userID, quest); err != nil {
		if errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrQuestLocked) {
			return state, nil
		}
		return nil, err
	}
	log.Printf("⚡ Auto-completed quest %q for user %s (%s %d/%d)",
		quest.Title, userID, state.Kind, state.Current, state.Required)
	return state, nil
}

// EvaluateAllForUser sweeps every rule-driven quest for one user.
func (s *ProgressService) EvaluateAllForUser(userID string) error {
	quests, err := s.autoQuests("")
	if err != nil {
		return err
	}
	for i := range quests {
		if _, err := s.EvaluateAndComplete(userID, &quests[i]); err != nil {
			log.Printf("❌ Evaluation failed for quest %s user %s: %v", quests[i].ID, userID, err)
		}
	}
	return nil
}

// EvaluateDistanceQuests re-checks only external_distance quests, used after
// an external activity lands.
func (s *ProgressService) EvaluateDistanceQuests(userID string) error {
	quests, err := s.autoQuests(models.CompletionExternalDistance)
	if err != nil {
		return err
	}
	for i := range quests {
		if _, err := s.EvaluateAndComplete(userID, &quests[i]); err != nil {
			log.Printf("❌ Distance evaluation failed for quest %s user %s: %v", quests[i].ID, userID, err)
		}
	}
	return nil
}

func (s *ProgressService) autoQuests(kind string) ([]models.Quest, error) {
	q := s.DB.Preload("Skills", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
	if kind != "" {
		q = q.Where("completion_type = ?", kind)
	} else {
		q = q.Where("completion_type <> ''")
	}
	var quests []models.Quest
	if err := q.Find(&quests).Error; err != nil {
		return nil, err
	}
	return quests, nil
}
