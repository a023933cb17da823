// services/scheduler.go
package services

import (
	"log"
	"time"

	"habit-quest-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartEvaluationSweep re-evaluates rule-driven quests for recently active
// users on a timer. Streak and day-span rules can cross their threshold while
// nobody is logging anything new, so completion cannot rely on write-path
// triggers alone. Sweeping a user whose quests already completed is harmless
// thanks to the availability guard.
func (s *ProgressService) StartEvaluationSweep(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			since := s.Clock.Now().Add(-48 * time.Hour)

			var userIDs []string
			err := s.DB.Model(&models.ActivityLog{}).
				Where("created_at >= ?", since).
				Distinct("user_id").
				Pluck("user_id", &userIDs).Error
			if err != nil {
				log.Printf("[Sweep] DB error: %v", err)
				return
			}

			for _, userID := range userIDs {
				if err := s.EvaluateAllForUser(userID); err != nil {
					log.Printf("[Sweep] Evaluation failed for user %s: %v", userID, err)
				}
			}
			if len(userIDs) > 0 {
				log.Printf("✅ Swept rule-driven quests for %d active user(s)", len(userIDs))
			}
		}),
	)
}
