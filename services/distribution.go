package services

import (
	"time"

	"habit-quest-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillCredit is one slice of a distributed quest reward.
type SkillCredit struct {
	SkillID string `json:"skill_id"`
	XP      int64  `json:"xp"`
}

// SplitReward computes each skill's slice of a quest reward: floored
// percentage shares, with the rounding remainder assigned to the
// highest-share skill (first by catalog position on ties) whenever the shares
// fully subscribe the reward. Under- or over-subscribed share sets pay
// exactly their floored shares. Negative shares are a catalog integrity bug.
func SplitReward(reward int64, shares []models.QuestSkill) ([]SkillCredit, error) {
	if reward <= 0 {
		return nil, ErrInvalidQuestConfig
	}

	shareSum := 0
	for _, qs := range shares {
		if qs.XPShare < 0 {
			return nil, ErrInvalidQuestConfig
		}
		shareSum += qs.XPShare
	}

	credits := make([]SkillCredit, len(shares))
	var credited int64
	topIdx := -1
	for i, qs := range shares {
		credits[i] = SkillCredit{
			SkillID: qs.SkillID,
			XP:      reward * int64(qs.XPShare) / 100,
		}
		credited += credits[i].XP
		if topIdx == -1 || qs.XPShare > shares[topIdx].XPShare ||
			(qs.XPShare == shares[topIdx].XPShare && qs.Position < shares[topIdx].Position) {
			topIdx = i
		}
	}

	// Rounding loss must not vanish when the quest pays out its whole reward.
	if shareSum == 100 && topIdx >= 0 {
		credits[topIdx].XP += reward - credited
	}
	return credits, nil
}

// distributeQuestXPTx writes one quest-provenance activity row per non-zero
// credit. Runs inside the completion transaction so a failed completion
// leaves no partial split behind.
func (s *QuestService) distributeQuestXPTx(tx *gorm.DB, userID string, quest *models.Quest, completedAt time.Time) ([]SkillCredit, error) {
	shares := quest.Skills
	if len(shares) == 0 {
		// Degenerate but legal catalog state: the full reward goes to the
		// configured default skill.
		if s.DefaultSkillID == "" {
			return nil, ErrInvalidQuestConfig
		}
		shares = []models.QuestSkill{{SkillID: s.DefaultSkillID, XPShare: 100}}
	}

	credits, err := SplitReward(quest.XPReward, shares)
	if err != nil {
		return nil, err
	}

	var touched []string
	for _, credit := range credits {
		if credit.XP == 0 {
			continue
		}
		var count int64
		if err := tx.Model(&models.SkillTree{}).Where("id = ?", credit.SkillID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrInvalidQuestConfig
		}

		skillID := credit.SkillID
		questID := quest.ID
		entry := models.ActivityLog{
			ID:           uuid.NewString(),
			UserID:       userID,
			SkillID:      &skillID,
			ActivityName: quest.Title,
			XPAwarded:    credit.XP,
			Source:       models.SourceQuest,
			QuestID:      &questID,
			CreatedAt:    completedAt,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return nil, err
		}
		touched = append(touched, credit.SkillID)
	}

	if err := s.Ledger.RefreshCachesTx(tx, userID, touched); err != nil {
		return nil, err
	}
	return credits, nil
}
