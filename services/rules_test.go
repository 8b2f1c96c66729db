package services

import (
	"testing"
	"time"
)

func TestLoadGameRulesDefaults(t *testing.T) {
	rules := LoadGameRules()
	if rules != DefaultGameRules {
		t.Errorf("rules = %+v, want the defaults with no env set", rules)
	}
}

func TestLoadGameRulesFromEnv(t *testing.T) {
	t.Setenv("QUESTIONS_PER_PLAYER", "3")
	t.Setenv("ANSWER_TIME_LIMIT_SECONDS", "20")
	t.Setenv("EXTRA_ROUND_QUESTIONS", "2")
	t.Setenv("RANKING_SIZE", "5")
	t.Setenv("STALE_MATCH_AGE_MINUTES", "15")

	rules := LoadGameRules()
	if rules.QuestionsPerPlayer != 3 {
		t.Errorf("questions per player = %d, want 3", rules.QuestionsPerPlayer)
	}
	if rules.AnswerTimeLimit != 20*time.Second {
		t.Errorf("answer time limit = %v, want 20s", rules.AnswerTimeLimit)
	}
	if rules.ExtraRoundQuestions != 2 {
		t.Errorf("extra round questions = %d, want 2", rules.ExtraRoundQuestions)
	}
	if rules.RankingSize != 5 {
		t.Errorf("ranking size = %d, want 5", rules.RankingSize)
	}
	if rules.StaleMatchAge != 15*time.Minute {
		t.Errorf("stale match age = %v, want 15m", rules.StaleMatchAge)
	}
}

func TestLoadGameRulesIgnoresBadValues(t *testing.T) {
	t.Setenv("QUESTIONS_PER_PLAYER", "not-a-number")
	t.Setenv("ANSWER_TIME_LIMIT_SECONDS", "-3")
	t.Setenv("RANKING_SIZE", "0")

	rules := LoadGameRules()
	if rules != DefaultGameRules {
		t.Errorf("rules = %+v, want defaults when overrides are unusable", rules)
	}
}
