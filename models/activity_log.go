package models

import (
	"time"
)

// Activity provenance. Quest-derived credits carry SourceQuest plus the quest
// id so the UI can tell them apart from manual entries without string-matching
// the activity name.
const (
	SourceManual = "manual"
	SourceQuest  = "quest"
	SourceStrava = "strava"
)

// ActivityLog is append-only. The sum of XPAwarded per (user, skill) is the
// sole source of truth for that skill's XP; user_skills and profiles only
// cache it.
type ActivityLog struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"index:idx_activity_user_skill;not null" json:"user_id"`
	SkillID      *string   `gorm:"index:idx_activity_user_skill;type:uuid" json:"skill_id,omitempty"`
	ActivityName string    `gorm:"not null" json:"activity_name"`
	XPAwarded    int64     `gorm:"not null" json:"xp_awarded"`
	Source       string    `gorm:"type:varchar(16);not null;default:'manual';index" json:"source"`
	QuestID      *string   `gorm:"type:uuid" json:"quest_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ActivityLog) TableName() string { return "activity_log" }
