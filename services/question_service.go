package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"trivia-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionService drives the question/answer cycle inside a match: it issues
// generated questions against a per-player quota and scores answers under
// the time limit.
type QuestionService struct {
	DB        *gorm.DB
	Rules     GameRules
	Generator QuestionGenerator
}

func NewQuestionService(db *gorm.DB, rules GameRules, generator QuestionGenerator) *QuestionService {
	return &QuestionService{DB: db, Rules: rules, Generator: generator}
}

// IssuedQuestion is the question payload sent to clients. The correct label
// is withheld until the answer comes back.
type IssuedQuestion struct {
	QuestionID string            `json:"question_id"`
	Question   string            `json:"question"`
	Options    map[string]string `json:"options"`
	Tip        string            `json:"tip"`
}

// IssueQuestion generates a fresh question for the match and records when it
// was sent. Players that already answered their quota of regular questions
// get ErrQuotaExceeded; generator failures persist nothing.
func (s *QuestionService) IssueQuestion(ctx context.Context, matchID, playerID string) (*IssuedQuestion, error) {
	var match models.Match
	if err := s.DB.First(&match, "id = ?", matchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	var answered int64
	if err := s.DB.Model(&models.MatchQuestion{}).
		Where("match_id = ? AND answered_by_id = ? AND is_extra_round = ?", matchID, playerID, false).
		Count(&answered).Error; err != nil {
		return nil, err
	}
	if answered >= int64(s.Rules.QuestionsPerPlayer) {
		return nil, ErrQuotaExceeded
	}

	item, err := s.Generator.Generate(ctx)
	if err != nil || item == nil {
		log.Printf("question generation failed: %v", err)
		return nil, ErrUpstreamUnavailable
	}

	question, link, err := buildQuestionRound(item, matchID, false)
	if err != nil {
		return nil, err
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(question).Error; err != nil {
			return err
		}
		return tx.Create(link).Error
	})
	if err != nil {
		return nil, err
	}

	return &IssuedQuestion{
		QuestionID: question.ID,
		Question:   question.Text,
		Options:    item.Options,
		Tip:        question.Tip,
	}, nil
}

// buildQuestionRound turns a generated item into its Question row plus the
// MatchQuestion link stamped with the issue time.
func buildQuestionRound(item *TriviaQuestion, matchID string, extra bool) (*models.Question, *models.MatchQuestion, error) {
	optionsJSON, err := json.Marshal(item.Options)
	if err != nil {
		return nil, nil, err
	}
	question := &models.Question{
		ID:            uuid.NewString(),
		Text:          item.Question,
		Options:       string(optionsJSON),
		CorrectOption: item.CorrectOption,
		Tip:           item.Tip,
	}
	link := &models.MatchQuestion{
		ID:           uuid.NewString(),
		MatchID:      matchID,
		QuestionID:   question.ID,
		IsExtraRound: extra,
		SentAt:       time.Now(),
	}
	return question, link, nil
}

// AnswerOutcome summarizes a scored answer.
type AnswerOutcome struct {
	Correct       bool    `json:"correct"`
	CorrectOption string  `json:"correct_option"`
	Tip           string  `json:"tip"`
	TimeTaken     float64 `json:"time_taken"`
	TimeExpired   bool    `json:"time_expired"`
}

// RecordAnswer scores exactly one answer for a round. Elapsed time past the
// limit forces incorrect even when the label matches; the round mutation is
// terminal, so a second racer always observes ErrAlreadyAnswered.
func (s *QuestionService) RecordAnswer(matchID, questionID, playerID, selected string) (*AnswerOutcome, error) {
	var out *AnswerOutcome
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var round models.MatchQuestion
		err := tx.Where("match_id = ? AND question_id = ?", matchID, questionID).First(&round).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoundNotFound
		}
		if err != nil {
			return err
		}
		if round.AnsweredByID != nil {
			return ErrAlreadyAnswered
		}

		var question models.Question
		if err := tx.First(&question, "id = ?", round.QuestionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoundNotFound
			}
			return err
		}

		elapsed := math.Round(time.Since(round.SentAt).Seconds()*100) / 100
		expired := elapsed > s.Rules.AnswerTimeLimit.Seconds()
		labelMatches := strings.EqualFold(strings.TrimSpace(selected), strings.TrimSpace(question.CorrectOption))
		correct := labelMatches && !expired

		// Compare-and-set on the unanswered row: only the first writer wins.
		res := tx.Model(&models.MatchQuestion{}).
			Where("id = ? AND answered_by_id IS NULL", round.ID).
			Updates(map[string]interface{}{
				"answered_by_id":  playerID,
				"selected_option": selected,
				"time_taken":      elapsed,
				"is_correct":      correct,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAnswered
		}

		out = &AnswerOutcome{
			Correct:       correct,
			CorrectOption: question.CorrectOption,
			Tip:           question.Tip,
			TimeTaken:     elapsed,
			TimeExpired:   expired,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextQuestion handles GET /question?match_id=&user_id=.
func (s *QuestionService) NextQuestion(c *fiber.Ctx) error {
	matchID := c.Query("match_id")
	playerID := c.Query("user_id")
	if matchID == "" || playerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "match_id and user_id are required"})
	}

	issued, err := s.IssueQuestion(c.Context(), matchID, playerID)
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		// Normal game-flow limit, not a failure.
		return c.JSON(fiber.Map{"message": "question quota reached for this match"})
	case errors.Is(err, ErrMatchNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	case errors.Is(err, ErrUpstreamUnavailable):
		return c.Status(502).JSON(fiber.Map{"error": "failed to generate question, try again"})
	case err != nil:
		log.Printf("issue question failed for match %s: %v", matchID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(issued)
}

// SubmitAnswer handles POST /answer.
func (s *QuestionService) SubmitAnswer(c *fiber.Ctx) error {
	var req struct {
		MatchID        string `json:"match_id"`
		QuestionID     string `json:"question_id"`
		UserID         string `json:"user_id"`
		SelectedOption string `json:"selected_option"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.MatchID == "" || req.QuestionID == "" || req.UserID == "" || req.SelectedOption == "" {
		return c.Status(400).JSON(fiber.Map{"error": "match_id, question_id, user_id and selected_option are required"})
	}

	outcome, err := s.RecordAnswer(req.MatchID, req.QuestionID, req.UserID, req.SelectedOption)
	switch {
	case errors.Is(err, ErrRoundNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "question not found for this match"})
	case errors.Is(err, ErrAlreadyAnswered):
		return c.Status(409).JSON(fiber.Map{"error": "question already answered"})
	case err != nil:
		log.Printf("answer failed for match %s question %s: %v", req.MatchID, req.QuestionID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	message := "answer recorded"
	if outcome.TimeExpired {
		message = "time expired, answer scored incorrect"
	}
	return c.JSON(fiber.Map{
		"message":        message,
		"correct":        outcome.Correct,
		"correct_option": outcome.CorrectOption,
		"tip":            outcome.Tip,
		"time_taken":     outcome.TimeTaken,
	})
}
