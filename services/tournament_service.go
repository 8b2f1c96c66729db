package services

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"trivia-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TournamentJoinWaiting = "waiting"
	TournamentJoinStarted = "started"

	ReportStatusWaitingForRound    = "waiting_for_round"
	ReportStatusRoundAdvanced      = "round_advanced"
	ReportStatusTournamentFinished = "tournament_finished"
)

// TournamentService runs single-elimination brackets: it collects
// enrollments until the quota is met, builds round pairings and advances
// winners round by round to a champion.
type TournamentService struct {
	DB    *gorm.DB
	Rules GameRules
}

func NewTournamentService(db *gorm.DB, rules GameRules) *TournamentService {
	return &TournamentService{DB: db, Rules: rules}
}

// JoinResult is the outcome of a tournament enrollment.
type JoinResult struct {
	TournamentID string `json:"tournament_id"`
	Status       string `json:"status"`
	Enrolled     int    `json:"enrolled"`
	Quota        int    `json:"quota"`
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Enroll adds the player to the single waiting tournament, creating it if
// none is open. Reaching the quota shuffles the enrollees, builds the
// round-1 bracket and starts the tournament.
func (s *TournamentService) Enroll(playerID string, quota int) (*JoinResult, error) {
	if !isPowerOfTwo(quota) {
		return nil, ErrInvalidQuota
	}

	var out *JoinResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var player models.Player
		if err := tx.First(&player, "id = ?", playerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlayerNotFound
			}
			return err
		}

		tournament, err := findOrCreateWaitingTournament(tx)
		if err != nil {
			return err
		}

		var enrolled int64
		if err := tx.Model(&models.TournamentEntry{}).
			Where("tournament_id = ? AND player_id = ?", tournament.ID, playerID).
			Count(&enrolled).Error; err != nil {
			return err
		}
		if enrolled > 0 {
			return ErrAlreadyEnrolled
		}

		entry := models.TournamentEntry{
			ID:           uuid.NewString(),
			TournamentID: tournament.ID,
			PlayerID:     playerID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		var entries []models.TournamentEntry
		if err := tx.Where("tournament_id = ?", tournament.ID).
			Order("created_at ASC").Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) < quota {
			out = &JoinResult{TournamentID: tournament.ID, Status: TournamentJoinWaiting, Enrolled: len(entries), Quota: quota}
			return nil
		}

		if err := s.buildFirstRound(tx, tournament.ID, entries); err != nil {
			return err
		}
		if err := tx.Model(&models.Tournament{}).
			Where("id = ?", tournament.ID).
			Update("status", models.TournamentStatusInProgress).Error; err != nil {
			return err
		}
		out = &JoinResult{TournamentID: tournament.ID, Status: TournamentJoinStarted, Enrolled: len(entries), Quota: quota}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// findOrCreateWaitingTournament resolves the single open tournament inside
// the caller's transaction, replacing the original process-wide singleton.
func findOrCreateWaitingTournament(tx *gorm.DB) (*models.Tournament, error) {
	var tournament models.Tournament
	err := tx.Where("status = ?", models.TournamentStatusWaiting).
		Order("created_at ASC").First(&tournament).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tournament = models.Tournament{
			ID:             uuid.NewString(),
			Status:         models.TournamentStatusWaiting,
			TournamentType: models.TournamentTypeElimination,
		}
		if err := tx.Create(&tournament).Error; err != nil {
			return nil, err
		}
		return &tournament, nil
	}
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

// buildFirstRound shuffles the enrollees uniformly and pairs them
// consecutively into immediately playable matches.
func (s *TournamentService) buildFirstRound(tx *gorm.DB, tournamentID string, entries []models.TournamentEntry) error {
	players := make([]string, len(entries))
	for i, e := range entries {
		players[i] = e.PlayerID
	}
	rand.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})

	for i := 0; i+1 < len(players); i += 2 {
		if _, err := createBracketMatch(tx, tournamentID, 1, players[i], players[i+1], true); err != nil {
			return err
		}
	}
	if len(players)%2 == 1 {
		// Quota enforcement makes this unreachable in practice; the odd
		// enrollee still advances instead of dangling on a nil slot.
		if err := advanceOnBye(tx, tournamentID, 1, players[len(players)-1]); err != nil {
			return err
		}
	}
	return nil
}

// createBracketMatch creates the playable Match, its two slots and the
// TournamentMatch row for one pairing. Round-1 matches start immediately;
// later rounds wait for the players.
func createBracketMatch(tx *gorm.DB, tournamentID string, round int, player1, player2 string, playing bool) (*models.TournamentMatch, error) {
	matchStatus := models.MatchStatusWaiting
	slotStatus := models.MatchPlayerWaiting
	var startedAt *time.Time
	if playing {
		matchStatus = models.MatchStatusInProgress
		slotStatus = models.MatchPlayerPlaying
		now := time.Now()
		startedAt = &now
	}

	match := models.Match{
		ID:        uuid.NewString(),
		Status:    matchStatus,
		MatchType: models.MatchTypeTournament,
		StartedAt: startedAt,
	}
	if err := tx.Create(&match).Error; err != nil {
		return nil, err
	}
	for _, playerID := range []string{player1, player2} {
		seat := models.MatchPlayer{
			ID:       uuid.NewString(),
			MatchID:  match.ID,
			PlayerID: playerID,
			Status:   slotStatus,
		}
		if err := tx.Create(&seat).Error; err != nil {
			return nil, err
		}
	}

	bracket := models.TournamentMatch{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		MatchID:      match.ID,
		RoundNumber:  round,
		Player1ID:    player1,
		Player2ID:    &player2,
	}
	if err := tx.Create(&bracket).Error; err != nil {
		return nil, err
	}
	return &bracket, nil
}

// advanceOnBye seats an unpaired winner in the next round with no opponent
// and a preset winner, so round-completion checks treat it as decided. No
// win is credited for a bye.
func advanceOnBye(tx *gorm.DB, tournamentID string, round int, playerID string) error {
	now := time.Now()
	match := models.Match{
		ID:         uuid.NewString(),
		Status:     models.MatchStatusFinished,
		MatchType:  models.MatchTypeTournament,
		WinnerID:   &playerID,
		FinishedAt: &now,
	}
	if err := tx.Create(&match).Error; err != nil {
		return err
	}
	seat := models.MatchPlayer{
		ID:       uuid.NewString(),
		MatchID:  match.ID,
		PlayerID: playerID,
		Status:   models.MatchPlayerWaiting,
	}
	if err := tx.Create(&seat).Error; err != nil {
		return err
	}
	bracket := models.TournamentMatch{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		MatchID:      match.ID,
		RoundNumber:  round,
		Player1ID:    playerID,
		WinnerID:     &playerID,
	}
	return tx.Create(&bracket).Error
}

// WinnerReport is the outcome of reporting a tournament match winner.
type WinnerReport struct {
	Status     string `json:"status"`
	Round      int    `json:"round"`
	NextRound  int    `json:"next_round,omitempty"`
	ChampionID string `json:"champion_id,omitempty"`
	Message    string `json:"message"`
}

// RecordMatchWinner stores the winner of one bracket match and, when its
// round is complete, either crowns the champion or builds the next round
// from the winners in bracket order.
func (s *TournamentService) RecordMatchWinner(tournamentMatchID, winnerID string) (*WinnerReport, error) {
	var out *WinnerReport
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var bracket models.TournamentMatch
		err := tx.First(&bracket, "id = ?", tournamentMatchID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTournamentMatchNotFound
		}
		if err != nil {
			return err
		}

		// Touching the tournament row serializes concurrent completion
		// checks for the same bracket, so two parallel reports cannot both
		// miss the other's winner and stall (or duplicate) the next round.
		if err := tx.Model(&models.Tournament{}).
			Where("id = ?", bracket.TournamentID).
			Update("updated_at", time.Now()).Error; err != nil {
			return err
		}

		if bracket.WinnerID != nil {
			return ErrAlreadyDecided
		}
		if winnerID != bracket.Player1ID && (bracket.Player2ID == nil || winnerID != *bracket.Player2ID) {
			return ErrInvalidWinner
		}

		res := tx.Model(&models.TournamentMatch{}).
			Where("id = ? AND winner_id IS NULL", bracket.ID).
			Update("winner_id", winnerID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyDecided
		}

		if err := tx.Model(&models.Player{}).
			Where("id = ?", winnerID).
			UpdateColumn("wins", gorm.Expr("wins + 1")).Error; err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.Match{}).
			Where("id = ? AND status <> ?", bracket.MatchID, models.MatchStatusFinished).
			Updates(map[string]interface{}{
				"status":      models.MatchStatusFinished,
				"winner_id":   winnerID,
				"finished_at": &now,
			}).Error; err != nil {
			return err
		}

		report, err := s.advanceRound(tx, bracket.TournamentID, bracket.RoundNumber)
		if err != nil {
			return err
		}
		out = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// advanceRound re-reads the round inside the transaction and advances the
// bracket when every match has a winner.
func (s *TournamentService) advanceRound(tx *gorm.DB, tournamentID string, round int) (*WinnerReport, error) {
	var roundMatches []models.TournamentMatch
	if err := tx.Where("tournament_id = ? AND round_number = ?", tournamentID, round).
		Order("created_at ASC").Find(&roundMatches).Error; err != nil {
		return nil, err
	}

	winners := make([]string, 0, len(roundMatches))
	for _, m := range roundMatches {
		if m.WinnerID == nil {
			return &WinnerReport{
				Status:  ReportStatusWaitingForRound,
				Round:   round,
				Message: fmt.Sprintf("winner recorded, waiting for the other matches of round %d", round),
			}, nil
		}
		winners = append(winners, *m.WinnerID)
	}

	if len(winners) == 1 {
		champion := winners[0]
		if err := tx.Model(&models.Tournament{}).
			Where("id = ?", tournamentID).
			Updates(map[string]interface{}{
				"status":    models.TournamentStatusFinished,
				"winner_id": champion,
			}).Error; err != nil {
			return nil, err
		}
		// Championship counts as one extra win on top of the match win.
		if err := tx.Model(&models.Player{}).
			Where("id = ?", champion).
			UpdateColumn("wins", gorm.Expr("wins + 1")).Error; err != nil {
			return nil, err
		}
		return &WinnerReport{
			Status:     ReportStatusTournamentFinished,
			Round:      round,
			ChampionID: champion,
			Message:    fmt.Sprintf("tournament finished, champion: %s", champion),
		}, nil
	}

	// Winners keep their bracket order; no reshuffle between rounds.
	next := round + 1
	for i := 0; i+1 < len(winners); i += 2 {
		if _, err := createBracketMatch(tx, tournamentID, next, winners[i], winners[i+1], false); err != nil {
			return nil, err
		}
	}
	if len(winners)%2 == 1 {
		if err := advanceOnBye(tx, tournamentID, next, winners[len(winners)-1]); err != nil {
			return nil, err
		}
	}

	return &WinnerReport{
		Status:    ReportStatusRoundAdvanced,
		Round:     round,
		NextRound: next,
		Message:   fmt.Sprintf("round %d finished, round %d created", round, next),
	}, nil
}

// Join handles POST /tournament/join?user_id=&quota=.
func (s *TournamentService) Join(c *fiber.Ctx) error {
	playerID := c.Query("user_id")
	if playerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}
	quota := c.QueryInt("quota", 4)

	result, err := s.Enroll(playerID, quota)
	switch {
	case errors.Is(err, ErrInvalidQuota):
		return c.Status(400).JSON(fiber.Map{"error": "quota must be a power of 2 (e.g. 4, 8, 16)"})
	case errors.Is(err, ErrPlayerNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "player not found"})
	case errors.Is(err, ErrAlreadyEnrolled):
		return c.Status(409).JSON(fiber.Map{"error": "player already enrolled in this tournament"})
	case err != nil:
		log.Printf("tournament join failed for player %s: %v", playerID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	if result.Status == TournamentJoinStarted {
		return c.JSON(fiber.Map{
			"message":       fmt.Sprintf("tournament started with %d players", result.Quota),
			"tournament_id": result.TournamentID,
			"status":        result.Status,
		})
	}
	return c.JSON(fiber.Map{
		"message":       fmt.Sprintf("enrolled, waiting for more players: %d/%d", result.Enrolled, result.Quota),
		"tournament_id": result.TournamentID,
		"status":        result.Status,
		"enrolled":      result.Enrolled,
		"quota":         result.Quota,
	})
}

// Status handles GET /tournament/status/:id.
func (s *TournamentService) Status(c *fiber.Ctx) error {
	id := c.Params("id")

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
		}
		log.Printf("tournament status query failed for %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	var brackets []models.TournamentMatch
	if err := s.DB.Where("tournament_id = ?", id).
		Order("round_number ASC, created_at ASC").Find(&brackets).Error; err != nil {
		log.Printf("tournament matches query failed for %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	matches := make([]fiber.Map, len(brackets))
	for i, b := range brackets {
		matches[i] = fiber.Map{
			"tournament_match_id": b.ID,
			"match_id":            b.MatchID,
			"round":               b.RoundNumber,
			"player1_id":          b.Player1ID,
			"player2_id":          b.Player2ID,
			"winner_id":           b.WinnerID,
		}
	}

	return c.JSON(fiber.Map{
		"id":        tournament.ID,
		"status":    tournament.Status,
		"type":      tournament.TournamentType,
		"winner_id": tournament.WinnerID,
		"matches":   matches,
	})
}

// ReportWinner handles POST /tournament/match/winner.
func (s *TournamentService) ReportWinner(c *fiber.Ctx) error {
	var req struct {
		TournamentMatchID string `json:"tournament_match_id"`
		WinnerUserID      string `json:"winner_user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	if req.TournamentMatchID == "" || req.WinnerUserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "tournament_match_id and winner_user_id are required"})
	}

	report, err := s.RecordMatchWinner(req.TournamentMatchID, req.WinnerUserID)
	switch {
	case errors.Is(err, ErrTournamentMatchNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "tournament match not found"})
	case errors.Is(err, ErrAlreadyDecided):
		return c.Status(409).JSON(fiber.Map{"error": "tournament match already has a winner"})
	case errors.Is(err, ErrInvalidWinner):
		return c.Status(400).JSON(fiber.Map{"error": "winner is not a player of this match"})
	case err != nil:
		log.Printf("report winner failed for %s: %v", req.TournamentMatchID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(report)
}
