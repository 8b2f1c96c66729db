package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"trivia-duel-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database per test, migrated with the
// full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Player{},
		&models.Match{},
		&models.MatchPlayer{},
		&models.Question{},
		&models.MatchQuestion{},
		&models.Tournament{},
		&models.TournamentEntry{},
		&models.TournamentMatch{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// stubGenerator hands out numbered questions, or a fixed error.
type stubGenerator struct {
	err   error
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context) (*TriviaQuestion, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &TriviaQuestion{
		Question:      fmt.Sprintf("question %d", g.calls),
		Options:       map[string]string{"A": "first", "B": "second", "C": "third", "D": "fourth"},
		CorrectOption: "A",
		Tip:           "a hint",
	}, nil
}

func seedPlayer(t *testing.T, db *gorm.DB, handle string) *models.Player {
	t.Helper()
	player := models.Player{ID: uuid.NewString(), Username: handle}
	if err := db.Create(&player).Error; err != nil {
		t.Fatalf("seed player %s: %v", handle, err)
	}
	return &player
}

// seedMatch creates an in-progress match with the given players seated.
func seedMatch(t *testing.T, db *gorm.DB, matchType string, playerIDs ...string) *models.Match {
	t.Helper()
	now := time.Now()
	match := models.Match{
		ID:        uuid.NewString(),
		Status:    models.MatchStatusInProgress,
		MatchType: matchType,
		StartedAt: &now,
	}
	if err := db.Create(&match).Error; err != nil {
		t.Fatalf("seed match: %v", err)
	}
	for _, id := range playerIDs {
		seat := models.MatchPlayer{
			ID:       uuid.NewString(),
			MatchID:  match.ID,
			PlayerID: id,
			Status:   models.MatchPlayerPlaying,
		}
		if err := db.Create(&seat).Error; err != nil {
			t.Fatalf("seed match player: %v", err)
		}
	}
	return &match
}

// seedOpenRound issues a question at sentAt with correct option "A".
func seedOpenRound(t *testing.T, db *gorm.DB, matchID string, sentAt time.Time, extra bool) *models.MatchQuestion {
	t.Helper()
	question := models.Question{
		ID:            uuid.NewString(),
		Text:          "seeded question",
		Options:       `{"A":"first","B":"second","C":"third","D":"fourth"}`,
		CorrectOption: "A",
		Tip:           "a hint",
	}
	if err := db.Create(&question).Error; err != nil {
		t.Fatalf("seed question: %v", err)
	}
	round := models.MatchQuestion{
		ID:           uuid.NewString(),
		MatchID:      matchID,
		QuestionID:   question.ID,
		IsExtraRound: extra,
		SentAt:       sentAt,
	}
	if err := db.Create(&round).Error; err != nil {
		t.Fatalf("seed round: %v", err)
	}
	return &round
}

// seedAnsweredRound records a finished round answered by playerID.
func seedAnsweredRound(t *testing.T, db *gorm.DB, matchID, playerID string, correct, extra bool) *models.MatchQuestion {
	t.Helper()
	round := seedOpenRound(t, db, matchID, time.Now().Add(-5*time.Second), extra)
	selected := "B"
	if correct {
		selected = "A"
	}
	updates := map[string]interface{}{
		"answered_by_id":  playerID,
		"selected_option": selected,
		"time_taken":      2.5,
		"is_correct":      correct,
	}
	if err := db.Model(&models.MatchQuestion{}).Where("id = ?", round.ID).Updates(updates).Error; err != nil {
		t.Fatalf("seed answer: %v", err)
	}
	round.AnsweredByID = &playerID
	round.SelectedOption = selected
	round.IsCorrect = correct
	return round
}
