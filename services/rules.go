package services

import (
	"os"
	"strconv"
	"time"
)

// GameRules groups the tunable gameplay constants so tests and deployments
// can adjust them without touching the engines.
type GameRules struct {
	QuestionsPerPlayer  int           // non-extra questions each player may answer per match
	AnswerTimeLimit     time.Duration // answers past this are scored incorrect
	ExtraRoundQuestions int           // extra rounds issued per tied player
	RankingSize         int           // players returned by the ranking endpoint
	StaleMatchAge       time.Duration // waiting casual matches older than this get cleaned up
}

var DefaultGameRules = GameRules{
	QuestionsPerPlayer:  10,
	AnswerTimeLimit:     10 * time.Second,
	ExtraRoundQuestions: 5,
	RankingSize:         10,
	StaleMatchAge:       30 * time.Minute,
}

// LoadGameRules returns the defaults overridden by environment variables.
func LoadGameRules() GameRules {
	rules := DefaultGameRules
	if n, ok := envInt("QUESTIONS_PER_PLAYER"); ok && n > 0 {
		rules.QuestionsPerPlayer = n
	}
	if n, ok := envInt("ANSWER_TIME_LIMIT_SECONDS"); ok && n > 0 {
		rules.AnswerTimeLimit = time.Duration(n) * time.Second
	}
	if n, ok := envInt("EXTRA_ROUND_QUESTIONS"); ok && n > 0 {
		rules.ExtraRoundQuestions = n
	}
	if n, ok := envInt("RANKING_SIZE"); ok && n > 0 {
		rules.RankingSize = n
	}
	if n, ok := envInt("STALE_MATCH_AGE_MINUTES"); ok && n > 0 {
		rules.StaleMatchAge = time.Duration(n) * time.Minute
	}
	return rules
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
