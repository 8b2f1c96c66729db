package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"trivia-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	ResultStatusDecided          = "decided"
	ResultStatusTieBreakStarted  = "tie_break_started"
	ResultStatusTieBreakPending  = "tie_break_pending"
	ResultStatusTieBreakRepeated = "tie_break_repeated"
)

// ResultService aggregates a match's answered rounds into scores, decides the
// winner and runs sudden-death extra rounds when the base score is tied.
type ResultService struct {
	DB        *gorm.DB
	Rules     GameRules
	Generator QuestionGenerator
}

func NewResultService(db *gorm.DB, rules GameRules, generator QuestionGenerator) *ResultService {
	return &ResultService{DB: db, Rules: rules, Generator: generator}
}

// MatchResult is the outcome of a compute-result call.
type MatchResult struct {
	Scores      map[string]int   `json:"scores"`
	Tied        bool             `json:"tied"`
	Winners     []string         `json:"winners"`
	Status      string           `json:"status"`
	ExtraRounds []IssuedQuestion `json:"extra_rounds,omitempty"`
}

// ComputeResult scores the match from its answered non-extra rounds. A
// decisive winner finishes the match; a tie issues a batch of extra rounds
// per tied player, and once those are all answered their correct counts
// break the tie (repeating the batch if the players stay level).
func (s *ResultService) ComputeResult(ctx context.Context, matchID string) (*MatchResult, error) {
	var out *MatchResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		var rounds []models.MatchQuestion
		if err := tx.Where("match_id = ? AND is_extra_round = ?", matchID, false).
			Find(&rounds).Error; err != nil {
			return err
		}

		scores := map[string]int{}
		for _, r := range rounds {
			if r.AnsweredByID == nil {
				continue
			}
			if _, ok := scores[*r.AnsweredByID]; !ok {
				scores[*r.AnsweredByID] = 0
			}
			if r.IsCorrect {
				scores[*r.AnsweredByID]++
			}
		}
		if len(scores) == 0 {
			return ErrNoAnswers
		}

		winners := topScorers(scores)
		if len(winners) == 1 {
			if err := s.finishMatch(tx, &match, winners[0]); err != nil {
				return err
			}
			out = &MatchResult{Scores: scores, Tied: false, Winners: winners, Status: ResultStatusDecided}
			return nil
		}

		return s.resolveTie(ctx, tx, &match, scores, winners, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolveTie inspects the match's extra rounds and either issues a batch,
// waits for pending answers, or settles the tie from the extra-round tally.
func (s *ResultService) resolveTie(ctx context.Context, tx *gorm.DB, match *models.Match, scores map[string]int, tied []string, out **MatchResult) error {
	var extras []models.MatchQuestion
	if err := tx.Where("match_id = ? AND is_extra_round = ?", match.ID, true).
		Find(&extras).Error; err != nil {
		return err
	}

	if len(extras) == 0 {
		issued, err := s.issueExtraRounds(ctx, tx, match.ID, len(tied))
		if err != nil {
			return err
		}
		*out = &MatchResult{Scores: scores, Tied: true, Winners: tied, Status: ResultStatusTieBreakStarted, ExtraRounds: issued}
		return nil
	}

	for _, r := range extras {
		if r.AnsweredByID == nil {
			*out = &MatchResult{Scores: scores, Tied: true, Winners: tied, Status: ResultStatusTieBreakPending}
			return nil
		}
	}

	// All extra rounds answered: the tally among the tied players decides.
	tiedSet := map[string]bool{}
	for _, id := range tied {
		tiedSet[id] = true
	}
	extraScores := map[string]int{}
	for _, id := range tied {
		extraScores[id] = 0
	}
	for _, r := range extras {
		if tiedSet[*r.AnsweredByID] && r.IsCorrect {
			extraScores[*r.AnsweredByID]++
		}
	}

	extraWinners := topScorers(extraScores)
	if len(extraWinners) == 1 {
		if err := s.finishMatch(tx, match, extraWinners[0]); err != nil {
			return err
		}
		*out = &MatchResult{Scores: scores, Tied: false, Winners: extraWinners, Status: ResultStatusDecided}
		return nil
	}

	// Still level after a full batch: wipe the slate with another one.
	issued, err := s.issueExtraRounds(ctx, tx, match.ID, len(extraWinners))
	if err != nil {
		return err
	}
	*out = &MatchResult{Scores: scores, Tied: true, Winners: extraWinners, Status: ResultStatusTieBreakRepeated, ExtraRounds: issued}
	return nil
}

// issueExtraRounds creates a batch of fresh extra-flagged rounds, one batch
// share per tied player. A generator failure rolls the whole batch back.
func (s *ResultService) issueExtraRounds(ctx context.Context, tx *gorm.DB, matchID string, tiedPlayers int) ([]IssuedQuestion, error) {
	total := s.Rules.ExtraRoundQuestions * tiedPlayers
	issued := make([]IssuedQuestion, 0, total)
	for i := 0; i < total; i++ {
		item, err := s.Generator.Generate(ctx)
		if err != nil || item == nil {
			log.Printf("extra round generation failed: %v", err)
			return nil, ErrUpstreamUnavailable
		}
		question, link, err := buildQuestionRound(item, matchID, true)
		if err != nil {
			return nil, err
		}
		if err := tx.Create(question).Error; err != nil {
			return nil, err
		}
		if err := tx.Create(link).Error; err != nil {
			return nil, err
		}
		issued = append(issued, IssuedQuestion{
			QuestionID: question.ID,
			Question:   question.Text,
			Options:    item.Options,
			Tip:        question.Tip,
		})
	}
	return issued, nil
}

// finishMatch closes the match with its winner. The status guard keeps
// repeated result calls from crediting the win twice; tournament match wins
// are credited by the bracket engine instead.
func (s *ResultService) finishMatch(tx *gorm.DB, match *models.Match, winnerID string) error {
	now := time.Now()
	res := tx.Model(&models.Match{}).
		Where("id = ? AND status <> ?", match.ID, models.MatchStatusFinished).
		Updates(map[string]interface{}{
			"status":      models.MatchStatusFinished,
			"winner_id":   winnerID,
			"finished_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 && match.MatchType == models.MatchTypeCasual {
		return tx.Model(&models.Player{}).
			Where("id = ?", winnerID).
			UpdateColumn("wins", gorm.Expr("wins + 1")).Error
	}
	return nil
}

// topScorers returns the sorted set of players holding the maximum score.
func topScorers(scores map[string]int) []string {
	max := 0
	first := true
	for _, score := range scores {
		if first || score > max {
			max = score
			first = false
		}
	}
	winners := make([]string, 0, 1)
	for id, score := range scores {
		if score == max {
			winners = append(winners, id)
		}
	}
	sort.Strings(winners)
	return winners
}

// GetResult handles GET /result?match_id=.
func (s *ResultService) GetResult(c *fiber.Ctx) error {
	matchID := c.Query("match_id")
	if matchID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "match_id is required"})
	}

	result, err := s.ComputeResult(c.Context(), matchID)
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "match not found"})
	case errors.Is(err, ErrNoAnswers):
		return c.Status(404).JSON(fiber.Map{"error": "no answers recorded for this match"})
	case errors.Is(err, ErrUpstreamUnavailable):
		return c.Status(502).JSON(fiber.Map{"error": "failed to generate tie-break questions, try again"})
	case err != nil:
		log.Printf("result computation failed for match %s: %v", matchID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(result)
}
