package services

import (
	"math"

	"habit-quest-system/models"
)

// Level thresholds follow a geometric progression. Thresholds are per-level,
// not cumulative sums: a user is at level L when their raw XP meets
// XPRequiredForLevel(L). Level 0 means no meaningful activity yet.
const (
	BaseXPPerLevel    = 100
	LevelGrowthFactor = 1.5
)

// XPRequiredForLevel returns the raw XP threshold for the given level.
// Level 0 and below require nothing.
func XPRequiredForLevel(level int) int64 {
	if level <= 0 {
		return 0
	}
	return int64(math.Floor(BaseXPPerLevel * math.Pow(LevelGrowthFactor, float64(level-1))))
}

type LevelProgress struct {
	Level         int   `json:"level"`
	XPIntoLevel   int64 `json:"xp_into_level"`
	XPToNextLevel int64 `json:"xp_to_next_level"`
}

// LevelFromXP maps cumulative XP to a level plus progress toward the next
// threshold. Pure and total; monotonic in xp. Negative input is a caller
// contract violation and is clamped rather than rejected here.
func LevelFromXP(xp int64) LevelProgress {
	if xp < 0 {
		xp = 0
	}
	level := 0
	for xp >= XPRequiredForLevel(level+1) {
		level++
	}
	return LevelProgress{
		Level:         level,
		XPIntoLevel:   xp - XPRequiredForLevel(level),
		XPToNextLevel: XPRequiredForLevel(level+1) - xp,
	}
}

// Milestone ladder: overall level plus a minimum level across every skill.
// The numbers come from the product's tier table, including the ten tier
// demanding min skill 15.
var milestoneLadder = []struct {
	Tier         models.MilestoneLevel
	OverallLevel int
	MinSkill     int
}{
	{models.MilestoneHundred, 100, 100},
	{models.MilestoneFifty, 50, 60},
	{models.MilestoneTwentyfive, 25, 30},
	{models.MilestoneTen, 10, 15},
	{models.MilestoneFive, 5, 5},
}

var milestoneRanks = map[models.MilestoneLevel]int{
	models.MilestoneNone:       0,
	models.MilestoneFive:       1,
	models.MilestoneTen:        2,
	models.MilestoneTwentyfive: 3,
	models.MilestoneFifty:      4,
	models.MilestoneHundred:    5,
}

// MilestoneFor returns the highest tier whose requirements are met. A user
// with no skills yet is MilestoneNone.
func MilestoneFor(overallLevel int, skillLevels []int) models.MilestoneLevel {
	if len(skillLevels) == 0 {
		return models.MilestoneNone
	}
	minSkill := skillLevels[0]
	for _, lvl := range skillLevels[1:] {
		if lvl < minSkill {
			minSkill = lvl
		}
	}
	for _, tier := range milestoneLadder {
		if overallLevel >= tier.OverallLevel && minSkill >= tier.MinSkill {
			return tier.Tier
		}
	}
	return models.MilestoneNone
}

// HigherMilestone keeps tiers monotonic: the stored tier never regresses even
// if the computed one momentarily would.
func HigherMilestone(current, computed models.MilestoneLevel) models.MilestoneLevel {
	if milestoneRanks[computed] > milestoneRanks[current] {
		return computed
	}
	return current
}
