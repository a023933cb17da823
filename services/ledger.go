package services

import (
	"errors"
	"log"
	"time"

	"habit-quest-system/models"
	"habit-quest-system/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns the activity log and every cache derived from it.
// Mutation happens only by appending rows; the user_skills and profiles
// caches are refreshed inside the same transaction as each append so reads
// never observe drift.
type LedgerService struct {
	DB     *gorm.DB
	Clock  clockwork.Clock
	Events *ProgressBroadcaster
}

func NewLedgerService(db *gorm.DB, clock clockwork.Clock, events *ProgressBroadcaster) *LedgerService {
	return &LedgerService{DB: db, Clock: clock, Events: events}
}

// LogActivity appends one immutable activity record stamped with the current
// time and refreshes the derived skill and profile state transactionally.
func (s *LedgerService) LogActivity(userID string, skillID *string, name string, xp int64, source string) (*models.ActivityLog, error) {
	return s.LogActivityAt(userID, skillID, name, xp, source, s.Clock.Now())
}

// LogActivityAt is LogActivity with an explicit occurrence time, for entries
// that happened earlier than they were delivered (backfilled external
// activities). Daily XP and streaks follow the recorded time, not delivery.
func (s *LedgerService) LogActivityAt(userID string, skillID *string, name string, xp int64, source string, occurredAt time.Time) (*models.ActivityLog, error) {
	if xp < 0 {
		return nil, ErrNegativeXP
	}

	var entry models.ActivityLog
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if skillID != nil {
			var count int64
			if err := tx.Model(&models.SkillTree{}).Where("id = ?", *skillID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrSkillNotFound
			}
		}

		entry = models.ActivityLog{
			ID:           uuid.NewString(),
			UserID:       userID,
			SkillID:      skillID,
			ActivityName: name,
			XPAwarded:    xp,
			Source:       source,
			CreatedAt:    occurredAt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		var skillIDs []string
		if skillID != nil {
			skillIDs = append(skillIDs, *skillID)
		}
		return s.RefreshCachesTx(tx, userID, skillIDs)
	})
	if err != nil {
		return nil, err
	}

	s.Events.Publish(ProgressEvent{UserID: userID, Scope: ScopeSkills, At: s.Clock.Now()})
	s.Events.Publish(ProgressEvent{UserID: userID, Scope: ScopeProfile, At: s.Clock.Now()})
	return &entry, nil
}

// RefreshCachesTx recomputes the user_skills rows for the touched skills and
// the profile's xp_total / level / streak / milestone from the activity log.
// Must run inside the transaction that modified the log.
//
// The leading no-op update takes the user's profile row lock for the rest of
// the transaction. Two concurrent refreshes for the same user would otherwise
// each sum the log without seeing the other's uncommitted rows and both save
// a stale total; with the lock the second blocks until the first commits and
// recomputes over its rows.
func (s *LedgerService) RefreshCachesTx(tx *gorm.DB, userID string, skillIDs []string) error {
	res := tx.Model(&models.Profile{}).
		Where("id = ?", userID).
		Update("xp_total", gorm.Expr("xp_total"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileNotFound
	}

	for _, skillID := range skillIDs {
		var total int64
		if err := tx.Model(&models.ActivityLog{}).
			Where("user_id = ? AND skill_id = ?", userID, skillID).
			Select("COALESCE(SUM(xp_awarded), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		cache := models.UserSkill{
			UserID:  userID,
			SkillID: skillID,
			XP:      total,
			Level:   LevelFromXP(total).Level,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "skill_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"xp", "level", "last_updated"}),
		}).Create(&cache).Error; err != nil {
			return err
		}
	}
	return s.refreshProfileTx(tx, userID)
}

func (s *LedgerService) refreshProfileTx(tx *gorm.DB, userID string) error {
	var profile models.Profile
	if err := tx.Where("id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return err
	}

	var grandTotal int64
	if err := tx.Model(&models.ActivityLog{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_awarded), 0)").
		Scan(&grandTotal).Error; err != nil {
		return err
	}
	profile.XPTotal = grandTotal
	profile.Level = LevelFromXP(grandTotal).Level

	// Daily streak over calendar days in the user's timezone.
	loc := utils.LoadUserLocation(profile.Timezone)
	today := utils.DayStart(s.Clock.Now(), loc)
	switch {
	case profile.LastActivityDay == nil:
		profile.StreakCount = 1
	case utils.SameDay(*profile.LastActivityDay, today, loc):
		// already counted today
	case utils.DaysBetween(*profile.LastActivityDay, today, loc) == 1:
		profile.StreakCount++
	default:
		profile.StreakCount = 1
	}
	profile.LastActivityDay = &today

	var skillLevels []int
	if err := tx.Model(&models.UserSkill{}).
		Where("user_id = ?", userID).
		Pluck("level", &skillLevels).Error; err != nil {
		return err
	}
	computed := MilestoneFor(profile.Level, skillLevels)
	raised := HigherMilestone(profile.MilestoneLevel, computed)
	if raised != profile.MilestoneLevel {
		log.Printf("🏆 Milestone reached: user %s → %s", userID, raised)
		profile.MilestoneLevel = raised
	}

	return tx.Save(&profile).Error
}

// TotalXP sums the log for one (user, skill) pair.
func (s *LedgerService) TotalXP(userID, skillID string) (int64, error) {
	var total int64
	err := s.DB.Model(&models.ActivityLog{}).
		Where("user_id = ? AND skill_id = ?", userID, skillID).
		Select("COALESCE(SUM(xp_awarded), 0)").
		Scan(&total).Error
	return total, err
}

// LevelFor derives the level for one (user, skill) pair from the log.
func (s *LedgerService) LevelFor(userID, skillID string) (LevelProgress, error) {
	total, err := s.TotalXP(userID, skillID)
	if err != nil {
		return LevelProgress{}, err
	}
	return LevelFromXP(total), nil
}

// GetSkillProgress returns the cached per-skill rows with skill metadata.
func (s *LedgerService) GetSkillProgress(userID string) ([]models.UserSkill, error) {
	var skills []models.UserSkill
	err := s.DB.Where("user_id = ?", userID).
		Preload("Skill").
		Order("xp DESC").
		Find(&skills).Error
	return skills, err
}

// TodayXP sums all XP earned during the user's current local day. Quest and
// external credits live in the same log, so a single sum covers everything.
func (s *LedgerService) TodayXP(userID string) (int64, error) {
	var profile models.Profile
	if err := s.DB.Where("id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProfileNotFound
		}
		return 0, err
	}
	loc := utils.LoadUserLocation(profile.Timezone)
	start := utils.DayStart(s.Clock.Now(), loc)
	end := start.AddDate(0, 0, 1)

	var total int64
	err := s.DB.Model(&models.ActivityLog{}).
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, start, end).
		Select("COALESCE(SUM(xp_awarded), 0)").
		Scan(&total).Error
	return total, err
}

// RecentActivities returns the newest page of the user's activity history.
func (s *LedgerService) RecentActivities(userID string, page, size int) ([]models.ActivityLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.DB.Model(&models.ActivityLog{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.ActivityLog
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset((page - 1) * size).
		Find(&entries).Error
	return entries, total, err
}

// GetProfile fetches the denormalized profile row.
func (s *LedgerService) GetProfile(userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.DB.Where("id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// EnsureProfile creates the profile row on first contact (idempotent).
func (s *LedgerService) EnsureProfile(userID, username, email, timezone string) (*models.Profile, error) {
	profile, err := s.GetProfile(userID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	if timezone == "" {
		timezone = "UTC"
	}
	created := models.Profile{
		ID:             userID,
		Username:       username,
		Email:          email,
		Timezone:       timezone,
		MilestoneLevel: models.MilestoneNone,
	}
	if err := s.DB.Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}
