package models

import (
	"time"
)

// SkillTree is admin-managed reference data. Rows are created once and never
// mutated by users; all runtime lookups go through the id, never the name.
type SkillTree struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null" json:"slug"`
	Color     string    `gorm:"not null" json:"color"`
	Icon      string    `gorm:"not null" json:"icon"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SkillTree) TableName() string { return "skill_trees" }
