package models

import (
	"time"
)

const (
	QuestTypeDaily  = "daily"
	QuestTypeWeekly = "weekly"
	QuestTypeLegacy = "legacy"
)

// Completion rule kinds. Empty string means the quest is completed manually.
const (
	CompletionNone             = ""
	CompletionDailyStreak      = "daily_streak"
	CompletionTotalActivities  = "total_activities"
	CompletionDaysWithActivity = "days_with_activity"
	CompletionExternalDistance = "external_distance"
)

type Quest struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `gorm:"not null" json:"description"`
	XPReward    int64  `gorm:"not null" json:"xp_reward"`
	QuestType   string `gorm:"type:varchar(16);not null" json:"quest_type"`

	// Auto-completion rule. CompletionRequirement is the kind-specific
	// threshold (days for streaks, count for activities, meters for
	// external_distance).
	CompletionType        string `gorm:"type:varchar(32);not null;default:''" json:"completion_type,omitempty"`
	CompletionRequirement int64  `gorm:"not null;default:0" json:"completion_requirement,omitempty"`

	// Legacy chains: a child quest stays locked until its parent has been
	// completed at least once.
	ParentQuestID *string `gorm:"type:uuid" json:"parent_quest_id,omitempty"`

	Skills []QuestSkill `gorm:"foreignKey:QuestID" json:"skills,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// QuestSkill assigns a percentage share of the quest's reward to a skill.
// Shares across a quest need not sum to 100 but typically do. Position fixes
// catalog order, which breaks ties when rounding remainder is assigned.
type QuestSkill struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	QuestID   string    `gorm:"uniqueIndex:idx_quest_skill;type:uuid;not null" json:"quest_id"`
	SkillID   string    `gorm:"uniqueIndex:idx_quest_skill;type:uuid;not null" json:"skill_id"`
	XPShare   int       `gorm:"not null;default:0" json:"xp_share"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Skill *SkillTree `gorm:"foreignKey:SkillID" json:"skill,omitempty"`
}

func (QuestSkill) TableName() string { return "quest_skills" }

// IsAutoCompleting reports whether the quest is driven by a progress rule
// rather than a manual completion request.
func (q *Quest) IsAutoCompleting() bool {
	return q.CompletionType != CompletionNone
}
