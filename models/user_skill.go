package models

import (
	"time"
)

// UserSkill is a per-skill read cache over activity_log. It is only ever
// written inside the same transaction as the activity insert it reflects.
type UserSkill struct {
	UserID      string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	SkillID     string    `gorm:"primaryKey;type:uuid" json:"skill_id"`
	XP          int64     `gorm:"not null;default:0" json:"xp"`
	Level       int       `gorm:"not null;default:0" json:"level"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`

	Skill *SkillTree `gorm:"foreignKey:SkillID" json:"skill,omitempty"`
}

func (UserSkill) TableName() string { return "user_skills" }
