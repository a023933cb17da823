package models

import (
	"time"
)

// UserQuest records one completion of a quest. Rows are never updated or
// deleted; a completion simply stops blocking re-completion once the reset
// time passes.
//
// The composite unique index is the correctness mechanism for exactly-once
// completion: the reset time is computed deterministically per quest type per
// window, so two concurrent completions of the same quest in the same window
// produce identical (user_id, quest_id, reset_time) tuples and the second
// insert fails with a duplicate-key error.
type UserQuest struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID      string    `gorm:"uniqueIndex:idx_user_quest_window;type:uuid;not null" json:"user_id"`
	QuestID     string    `gorm:"uniqueIndex:idx_user_quest_window;type:uuid;not null" json:"quest_id"`
	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	ResetTime   time.Time `gorm:"uniqueIndex:idx_user_quest_window;not null" json:"reset_time"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (UserQuest) TableName() string { return "user_quests" }

// Blocks reports whether this completion still makes the quest unavailable.
func (uq *UserQuest) Blocks(now time.Time) bool {
	return now.Before(uq.ResetTime)
}
