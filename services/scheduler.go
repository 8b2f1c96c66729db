package services

import (
	"log"
	"time"

	"trivia-duel-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// StartCleanupScheduler runs a minutely janitor that removes casual matches
// abandoned in `waiting` before an opponent ever showed up. Matches with any
// issued question are left alone.
func (s *MatchService) StartCleanupScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			cutoff := time.Now().Add(-s.Rules.StaleMatchAge)

			var stale []models.Match
			err := s.DB.Where("status = ? AND match_type = ? AND created_at <= ?",
				models.MatchStatusWaiting, models.MatchTypeCasual, cutoff).
				Find(&stale).Error
			if err != nil {
				log.Printf("[Janitor] DB error: %v", err)
				return
			}

			for _, match := range stale {
				err := s.DB.Transaction(func(tx *gorm.DB) error {
					// Skip it if somebody claimed the slot in the meantime.
					var current models.Match
					if err := tx.First(&current, "id = ?", match.ID).Error; err != nil {
						return nil
					}
					if current.Status != models.MatchStatusWaiting {
						return nil
					}
					var issued int64
					if err := tx.Model(&models.MatchQuestion{}).
						Where("match_id = ?", match.ID).Count(&issued).Error; err != nil {
						return err
					}
					if issued > 0 {
						return nil
					}
					if err := tx.Where("match_id = ?", match.ID).
						Delete(&models.MatchPlayer{}).Error; err != nil {
						return err
					}
					return tx.Delete(&models.Match{}, "id = ?", match.ID).Error
				})
				if err != nil {
					log.Printf("[Janitor] Failed to clean match %s: %v", match.ID, err)
				} else {
					log.Printf("✅ Cleaned up stale waiting match: %s", match.ID)
				}
			}
		}),
	)
}
