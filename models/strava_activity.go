package models

import (
	"time"
)

// StravaActivity stores one normalized activity delivered by the provider
// integration. The unique index on (user_id, strava_id) makes ingestion
// idempotent: re-delivering the same external id is a no-op.
type StravaActivity struct {
	ID             string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID         string    `gorm:"uniqueIndex:idx_strava_user_activity;type:uuid;not null" json:"user_id"`
	StravaID       int64     `gorm:"uniqueIndex:idx_strava_user_activity;not null" json:"strava_id"`
	ActivityType   string    `gorm:"type:varchar(32);not null" json:"activity_type"`
	DistanceMeters float64   `gorm:"not null;default:0" json:"distance_meters"`
	OccurredAt     time.Time `gorm:"not null;index" json:"occurred_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (StravaActivity) TableName() string { return "strava_activities" }
