package services

import (
	"errors"
	"log"
	"time"

	"habit-quest-system/models"
	"habit-quest-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

// Legacy quests are one-time: their completion never stops blocking. A
// far-future sentinel keeps the (user, quest, reset_time) uniqueness key
// total instead of special-casing NULL.
var legacyResetTime = time.Date(9999, time.January, 1, 0, 0, 0, 0, time.UTC)

type QuestService struct {
	DB             *gorm.DB
	Clock          clockwork.Clock
	Ledger         *LedgerService
	Events         *ProgressBroadcaster
	DefaultSkillID string
}

func NewQuestService(db *gorm.DB, clock clockwork.Clock, ledger *LedgerService, events *ProgressBroadcaster, defaultSkillID string) *QuestService {
	return &QuestService{DB: db, Clock: clock, Ledger: ledger, Events: events, DefaultSkillID: defaultSkillID}
}

// CompletionResult reports one successful completion and the XP slices it
// credited.
type CompletionResult struct {
	QuestID     string        `json:"quest_id"`
	CompletedAt time.Time     `json:"completed_at"`
	ResetTime   time.Time     `json:"reset_time"`
	Credits     []SkillCredit `json:"credits"`
}

// QuestStatus is a catalog entry joined with the caller's completion state.
type QuestStatus struct {
	Quest       models.Quest `json:"quest"`
	Available   bool         `json:"available"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	ResetTime   *time.Time   `json:"reset_time,omitempty"`
}

// ResetTimeFor computes the deterministic end of the current completion
// window: daily quests reset at the next local midnight, weekly quests at the
// next Monday midnight, legacy quests never. Determinism within a window is
// load-bearing — it is what makes concurrent completions collide on the
// uniqueness constraint.
func ResetTimeFor(questType string, now time.Time, loc *time.Location) time.Time {
	switch questType {
	case models.QuestTypeDaily:
		return utils.NextMidnight(now, loc)
	case models.QuestTypeWeekly:
		return utils.NextWeekBoundary(now, loc)
	default:
		return legacyResetTime
	}
}

func (s *QuestService) getQuest(questID string) (*models.Quest, error) {
	var quest models.Quest
	err := s.DB.Preload("Skills", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Preload("Skills.Skill").
		Where("id = ?", questID).
		First(&quest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return &quest, nil
}

func latestCompletionTx(tx *gorm.DB, userID, questID string) (*models.UserQuest, error) {
	var uq models.UserQuest
	err := tx.Where("user_id = ? AND quest_id = ?", userID, questID).
		Order("reset_time DESC").
		First(&uq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &uq, nil
}

// IsAvailable reports whether the quest can be completed right now: no
// completion exists, or the latest one has passed its reset time.
func (s *QuestService) IsAvailable(userID, questID string) (bool, error) {
	latest, err := latestCompletionTx(s.DB, userID, questID)
	if err != nil {
		return false, err
	}
	return latest == nil || !latest.Blocks(s.Clock.Now()), nil
}

// Complete handles a direct user completion request. Rule-driven quests are
// only ever completed by the progress evaluator.
func (s *QuestService) Complete(userID, questID string) (*CompletionResult, error) {
	quest, err := s.getQuest(questID)
	if err != nil {
		return nil, err
	}
	if quest.IsAutoCompleting() {
		return nil, ErrManualCompletionNotAllowed
	}
	return s.complete(userID, quest)
}

// completeAuto is the evaluator's entry point; it skips the manual-completion
// guard but shares everything else.
func (s *QuestService) completeAuto(userID string, quest *models.Quest) (*CompletionResult, error) {
	return s.complete(userID, quest)
}

func (s *QuestService) complete(userID string, quest *models.Quest) (*CompletionResult, error) {
	profile, err := s.Ledger.GetProfile(userID)
	if err != nil {
		return nil, err
	}

	if quest.ParentQuestID != nil {
		parentDone, err := s.hasAnyCompletion(userID, *quest.ParentQuestID)
		if err != nil {
			return nil, err
		}
		if !parentDone {
			return nil, ErrQuestLocked
		}
	}

	now := s.Clock.Now()
	loc := utils.LoadUserLocation(profile.Timezone)
	resetTime := ResetTimeFor(quest.QuestType, now, loc)

	var result *CompletionResult
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Cheap pre-check; the unique index is what actually decides races.
		latest, err := latestCompletionTx(tx, userID, quest.ID)
		if err != nil {
			return err
		}
		if latest != nil && latest.Blocks(now) {
			return ErrAlreadyCompleted
		}

		uq := models.UserQuest{
			ID:          uuid.NewString(),
			UserID:      userID,
			QuestID:     quest.ID,
			CompletedAt: now,
			ResetTime:   resetTime,
		}
		if err := tx.Create(&uq).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyCompleted
			}
			return err
		}

		credits, err := s.distributeQuestXPTx(tx, userID, quest, now)
		if err != nil {
			return err
		}
		result = &CompletionResult{
			QuestID:     quest.ID,
			CompletedAt: now,
			ResetTime:   resetTime,
			Credits:     credits,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidQuestConfig) {
			log.Printf("❌ Invalid quest config blocked completion: quest=%s user=%s", quest.ID, userID)
		}
		return nil, err
	}

	log.Printf("🎯 Quest completed: %q by user %s (+%d XP, resets %s)",
		quest.Title, userID, quest.XPReward, resetTime.Format(time.RFC3339))
	s.Events.Publish(ProgressEvent{UserID: userID, Scope: ScopeQuests, At: now})
	s.Events.Publish(ProgressEvent{UserID: userID, Scope: ScopeSkills, At: now})
	s.Events.Publish(ProgressEvent{UserID: userID, Scope: ScopeProfile, At: now})
	return result, nil
}

func (s *QuestService) hasAnyCompletion(userID, questID string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.UserQuest{}).
		Where("user_id = ? AND quest_id = ?", userID, questID).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns the catalog with per-quest availability. Legacy
// children whose parent was never completed are hidden.
func (s *QuestService) ListForUser(userID string) ([]QuestStatus, error) {
	var quests []models.Quest
	err := s.DB.Preload("Skills", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Preload("Skills.Skill").
		Order("created_at ASC").
		Find(&quests).Error
	if err != nil {
		return nil, err
	}

	var completions []models.UserQuest
	if err := s.DB.Where("user_id = ?", userID).
		Order("reset_time DESC").
		Find(&completions).Error; err != nil {
		return nil, err
	}
	latest := make(map[string]*models.UserQuest, len(completions))
	everDone := make(map[string]bool, len(completions))
	for i := range completions {
		uq := &completions[i]
		everDone[uq.QuestID] = true
		if _, ok := latest[uq.QuestID]; !ok {
			latest[uq.QuestID] = uq
		}
	}

	now := s.Clock.Now()
	statuses := make([]QuestStatus, 0, len(quests))
	for _, quest := range quests {
		if quest.ParentQuestID != nil && !everDone[*quest.ParentQuestID] {
			continue
		}
		status := QuestStatus{Quest: quest, Available: true}
		if uq := latest[quest.ID]; uq != nil && uq.Blocks(now) {
			status.Available = false
			completedAt := uq.CompletedAt
			resetTime := uq.ResetTime
			status.CompletedAt = &completedAt
			status.ResetTime = &resetTime
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// --- Admin catalog management ---

type QuestSkillInput struct {
	SkillID string `json:"skill_id"`
	XPShare int    `json:"xp_share"`
}

type QuestInput struct {
	Title                 string            `json:"title"`
	Description           string            `json:"description"`
	XPReward              int64             `json:"xp_reward"`
	QuestType             string            `json:"quest_type"`
	CompletionType        string            `json:"completion_type"`
	CompletionRequirement int64             `json:"completion_requirement"`
	ParentQuestID         *string           `json:"parent_quest_id"`
	Skills                []QuestSkillInput `json:"skills"`
}

func validQuestType(t string) bool {
	return t == models.QuestTypeDaily || t == models.QuestTypeWeekly || t == models.QuestTypeLegacy
}

func validCompletionType(t string) bool {
	switch t {
	case models.CompletionNone, models.CompletionDailyStreak,
		models.CompletionTotalActivities, models.CompletionDaysWithActivity,
		models.CompletionExternalDistance:
		return true
	}
	return false
}

// CreateQuest validates and inserts a catalog entry with its skill shares.
func (s *QuestService) CreateQuest(input QuestInput) (*models.Quest, error) {
	if input.Title == "" || input.XPReward <= 0 ||
		!validQuestType(input.QuestType) || !validCompletionType(input.CompletionType) ||
		input.CompletionRequirement < 0 {
		return nil, ErrInvalidQuestConfig
	}
	for _, sk := range input.Skills {
		if sk.XPShare < 0 {
			return nil, ErrInvalidQuestConfig
		}
	}

	quest := models.Quest{
		ID:                    uuid.NewString(),
		Title:                 input.Title,
		Slug:                  slug.Make(input.Title),
		Description:           input.Description,
		XPReward:              input.XPReward,
		QuestType:             input.QuestType,
		CompletionType:        input.CompletionType,
		CompletionRequirement: input.CompletionRequirement,
		ParentQuestID:         input.ParentQuestID,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if quest.ParentQuestID != nil {
			var count int64
			if err := tx.Model(&models.Quest{}).Where("id = ?", *quest.ParentQuestID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrInvalidQuestConfig
			}
		}
		if err := tx.Create(&quest).Error; err != nil {
			return err
		}
		for i, sk := range input.Skills {
			var count int64
			if err := tx.Model(&models.SkillTree{}).Where("id = ?", sk.SkillID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrInvalidQuestConfig
			}
			qs := models.QuestSkill{
				ID:       uuid.NewString(),
				QuestID:  quest.ID,
				SkillID:  sk.SkillID,
				XPShare:  sk.XPShare,
				Position: i,
			}
			if err := tx.Create(&qs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.getQuest(quest.ID)
}

// UpdateQuest replaces a catalog entry's mutable fields and its skill shares.
// Past completions are untouched; only future completions see the new reward
// and shares.
func (s *QuestService) UpdateQuest(questID string, input QuestInput) (*models.Quest, error) {
	if input.Title == "" || input.XPReward <= 0 ||
		!validQuestType(input.QuestType) || !validCompletionType(input.CompletionType) ||
		input.CompletionRequirement < 0 {
		return nil, ErrInvalidQuestConfig
	}
	for _, sk := range input.Skills {
		if sk.XPShare < 0 {
			return nil, ErrInvalidQuestConfig
		}
	}

	quest, err := s.getQuest(questID)
	if err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"title":                  input.Title,
			"slug":                   slug.Make(input.Title),
			"description":            input.Description,
			"xp_reward":              input.XPReward,
			"quest_type":             input.QuestType,
			"completion_type":        input.CompletionType,
			"completion_requirement": input.CompletionRequirement,
		}
		if err := tx.Model(&models.Quest{}).Where("id = ?", questID).Updates(updates).Error; err != nil {
			return err
		}

		if err := tx.Where("quest_id = ?", questID).Delete(&models.QuestSkill{}).Error; err != nil {
			return err
		}
		for i, sk := range input.Skills {
			var count int64
			if err := tx.Model(&models.SkillTree{}).Where("id = ?", sk.SkillID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrInvalidQuestConfig
			}
			qs := models.QuestSkill{
				ID:       uuid.NewString(),
				QuestID:  questID,
				SkillID:  sk.SkillID,
				XPShare:  sk.XPShare,
				Position: i,
			}
			if err := tx.Create(&qs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📝 Quest updated: %q (%s)", input.Title, quest.ID)
	return s.getQuest(questID)
}

// CreateSkill inserts a reference skill.
func (s *QuestService) CreateSkill(name, color, icon string) (*models.SkillTree, error) {
	if name == "" {
		return nil, ErrInvalidQuestConfig
	}
	skill := models.SkillTree{
		ID:    uuid.NewString(),
		Name:  name,
		Slug:  slug.Make(name),
		Color: color,
		Icon:  icon,
	}
	if err := s.DB.Create(&skill).Error; err != nil {
		return nil, err
	}
	return &skill, nil
}
