package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"trivia-duel-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	ConnectStatusReady   = "ready"
	ConnectStatusWaiting = "waiting_for_opponent"
)

// MatchService pairs connecting players into 1v1 matches and serves the
// win ranking.
type MatchService struct {
	DB    *gorm.DB
	Rules GameRules
}

func NewMatchService(db *gorm.DB, rules GameRules) *MatchService {
	return &MatchService{DB: db, Rules: rules}
}

// ConnectResult is the outcome of a /connect call.
type ConnectResult struct {
	PlayerID string `json:"user_id"`
	Username string `json:"username"`
	MatchID  string `json:"match_id"`
	Status   string `json:"status"`
}

// ConnectPlayer resolves the handle to a player (lookup-or-create) and slots
// them into a casual match: the oldest match with a single occupied slot if
// one exists, otherwise a fresh waiting match.
func (s *MatchService) ConnectPlayer(username string) (*ConnectResult, error) {
	handle := slug.Make(strings.TrimSpace(username))
	if handle == "" {
		return nil, ErrInvalidUsername
	}

	var out *ConnectResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		player, err := getOrCreatePlayer(tx, handle)
		if err != nil {
			return err
		}

		// Reconnecting while still unpaired returns the same waiting match,
		// so a player can never fill both slots of one match.
		var own models.MatchPlayer
		err = tx.Joins("JOIN matches ON matches.id = match_players.match_id").
			Where("match_players.player_id = ? AND matches.status = ? AND matches.match_type = ?",
				player.ID, models.MatchStatusWaiting, models.MatchTypeCasual).
			First(&own).Error
		if err == nil {
			out = &ConnectResult{PlayerID: player.ID, Username: player.Username, MatchID: own.MatchID, Status: ConnectStatusWaiting}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		matchID, err := findWaitingMatch(tx)
		if err != nil {
			return err
		}

		if matchID != "" {
			now := time.Now()
			// Claiming the open slot flips the match out of `waiting`; a
			// racing connect that loses the update falls through and opens
			// a new match instead.
			res := tx.Model(&models.Match{}).
				Where("id = ? AND status = ?", matchID, models.MatchStatusWaiting).
				Updates(map[string]interface{}{"status": models.MatchStatusInProgress, "started_at": &now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				seat := models.MatchPlayer{
					ID:       uuid.NewString(),
					MatchID:  matchID,
					PlayerID: player.ID,
					Status:   models.MatchPlayerPlaying,
				}
				if err := tx.Create(&seat).Error; err != nil {
					return err
				}
				if err := tx.Model(&models.MatchPlayer{}).
					Where("match_id = ?", matchID).
					Update("status", models.MatchPlayerPlaying).Error; err != nil {
					return err
				}
				out = &ConnectResult{PlayerID: player.ID, Username: player.Username, MatchID: matchID, Status: ConnectStatusReady}
				return nil
			}
		}

		match := models.Match{
			ID:        uuid.NewString(),
			Status:    models.MatchStatusWaiting,
			MatchType: models.MatchTypeCasual,
		}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
		seat := models.MatchPlayer{
			ID:       uuid.NewString(),
			MatchID:  match.ID,
			PlayerID: player.ID,
			Status:   models.MatchPlayerWaiting,
		}
		if err := tx.Create(&seat).Error; err != nil {
			return err
		}
		out = &ConnectResult{PlayerID: player.ID, Username: player.Username, MatchID: match.ID, Status: ConnectStatusWaiting}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// getOrCreatePlayer is idempotent: repeated handles resolve to the same row.
func getOrCreatePlayer(tx *gorm.DB, handle string) (*models.Player, error) {
	var player models.Player
	err := tx.Where("username = ?", handle).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		player = models.Player{ID: uuid.NewString(), Username: handle}
		if err := tx.Create(&player).Error; err != nil {
			return nil, err
		}
		return &player, nil
	}
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// findWaitingMatch returns the oldest casual match with exactly one occupied
// slot, or "" when everyone is paired.
func findWaitingMatch(tx *gorm.DB) (string, error) {
	var matchID string
	err := tx.Model(&models.MatchPlayer{}).
		Select("match_players.match_id").
		Joins("JOIN matches ON matches.id = match_players.match_id").
		Where("matches.status = ? AND matches.match_type = ?", models.MatchStatusWaiting, models.MatchTypeCasual).
		Group("match_players.match_id").
		Having("COUNT(match_players.id) = 1").
		Order("MIN(match_players.created_at) ASC").
		Limit(1).
		Scan(&matchID).Error
	if err != nil {
		return "", err
	}
	return matchID, nil
}

// RankingEntry is one row of the win ranking.
type RankingEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Wins     int64  `json:"wins"`
}

// TopPlayers returns the players with the most wins, best first.
func (s *MatchService) TopPlayers() ([]RankingEntry, error) {
	var players []models.Player
	if err := s.DB.Order("wins DESC").Limit(s.Rules.RankingSize).Find(&players).Error; err != nil {
		return nil, err
	}
	ranking := make([]RankingEntry, len(players))
	for i, p := range players {
		ranking[i] = RankingEntry{ID: p.ID, Username: p.Username, Wins: p.Wins}
	}
	return ranking, nil
}

// Connect handles POST /connect.
func (s *MatchService) Connect(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	result, err := s.ConnectPlayer(req.Username)
	if errors.Is(err, ErrInvalidUsername) {
		return c.Status(400).JSON(fiber.Map{"error": "username is required"})
	}
	if err != nil {
		log.Printf("connect failed for %q: %v", req.Username, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	return c.JSON(fiber.Map{
		"message":  "player connected",
		"user_id":  result.PlayerID,
		"username": result.Username,
		"match_id": result.MatchID,
		"status":   result.Status,
	})
}

// Ranking handles GET /ranking.
func (s *MatchService) Ranking(c *fiber.Ctx) error {
	ranking, err := s.TopPlayers()
	if err != nil {
		log.Printf("ranking query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(fiber.Map{"ranking": ranking})
}
