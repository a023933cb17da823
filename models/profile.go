package models

import (
	"time"

	"gorm.io/gorm"
)

type MilestoneLevel string

const (
	MilestoneNone       MilestoneLevel = "none"
	MilestoneFive       MilestoneLevel = "five"
	MilestoneTen        MilestoneLevel = "ten"
	MilestoneTwentyfive MilestoneLevel = "twentyfive"
	MilestoneFifty      MilestoneLevel = "fifty"
	MilestoneHundred    MilestoneLevel = "hundred"
)

// Profile mirrors the identity service's user record plus denormalized
// progression fields. XPTotal, Level and MilestoneLevel are caches of the
// activity log and are refreshed in the same transaction as every ledger
// write; MilestoneLevel never regresses.
type Profile struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	Username       string  `gorm:"uniqueIndex;not null" json:"username"`
	Email          string  `gorm:"not null" json:"email"`
	ProfilePicture *string `json:"profile_picture,omitempty"`
	Timezone       string  `gorm:"not null;default:'UTC'" json:"timezone"`

	XPTotal        int64          `gorm:"not null;default:0" json:"xp_total"`
	Level          int            `gorm:"not null;default:0" json:"level"`
	StreakCount    int            `gorm:"not null;default:0" json:"streak_count"`
	MilestoneLevel MilestoneLevel `gorm:"type:varchar(16);not null;default:'none'" json:"milestone_level"`

	// Local calendar day (midnight in the user's timezone) of the most
	// recent activity, used to advance or reset the daily streak.
	LastActivityDay *time.Time `json:"last_activity_day,omitempty"`

	Timestamps
}

func (Profile) TableName() string { return "profiles" }

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
