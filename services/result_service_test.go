package services

import (
	"context"
	"errors"
	"testing"

	"trivia-duel-system/models"
)

func TestComputeResultDecisiveWinner(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, false)

	result, err := svc.ComputeResult(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Tied {
		t.Error("tied = true, want false")
	}
	if len(result.Winners) != 1 || result.Winners[0] != p1.ID {
		t.Errorf("winners = %v, want [%s]", result.Winners, p1.ID)
	}
	if result.Scores[p1.ID] != 2 || result.Scores[p2.ID] != 1 {
		t.Errorf("scores = %v, want {%s:2 %s:1}", result.Scores, p1.ID, p2.ID)
	}

	var stored models.Match
	db.First(&stored, "id = ?", match.ID)
	if stored.Status != models.MatchStatusFinished {
		t.Errorf("match status = %q, want finished", stored.Status)
	}
	if stored.WinnerID == nil || *stored.WinnerID != p1.ID {
		t.Error("winner reference not set")
	}

	var winner models.Player
	db.First(&winner, "id = ?", p1.ID)
	if winner.Wins != 1 {
		t.Errorf("winner wins = %d, want 1", winner.Wins)
	}
}

func TestComputeResultIgnoresExtraAndUnansweredRounds(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, false, false)
	// Must not count: extra round and an unanswered round.
	seedAnsweredRound(t, db, match.ID, p2.ID, true, true)
	seedOpenRound(t, db, match.ID, match.CreatedAt, false)

	result, err := svc.ComputeResult(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Scores[p1.ID] != 1 || result.Scores[p2.ID] != 0 {
		t.Errorf("scores = %v, want {%s:1 %s:0}", result.Scores, p1.ID, p2.ID)
	}
	if len(result.Winners) != 1 || result.Winners[0] != p1.ID {
		t.Errorf("winners = %v, want [%s]", result.Winners, p1.ID)
	}
}

func TestComputeResultNoAnswers(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	if _, err := svc.ComputeResult(context.Background(), match.ID); !errors.Is(err, ErrNoAnswers) {
		t.Errorf("err = %v, want ErrNoAnswers", err)
	}
	if _, err := svc.ComputeResult(context.Background(), "nope"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("err = %v, want ErrMatchNotFound", err)
	}
}

func TestComputeResultTieIssuesExtraRounds(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	for i := 0; i < 2; i++ {
		seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
		seedAnsweredRound(t, db, match.ID, p2.ID, true, false)
	}

	result, err := svc.ComputeResult(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !result.Tied {
		t.Fatal("tied = false, want true")
	}
	if len(result.Winners) != 2 {
		t.Errorf("winners = %v, want both players", result.Winners)
	}
	if result.Status != ResultStatusTieBreakStarted {
		t.Errorf("status = %q, want %q", result.Status, ResultStatusTieBreakStarted)
	}
	// 5 per tied player.
	if len(result.ExtraRounds) != 10 {
		t.Errorf("extra rounds issued = %d, want 10", len(result.ExtraRounds))
	}

	var flagged int64
	db.Model(&models.MatchQuestion{}).
		Where("match_id = ? AND is_extra_round = ?", match.ID, true).
		Count(&flagged)
	if flagged != 10 {
		t.Errorf("persisted extra rounds = %d, want 10", flagged)
	}

	var stored models.Match
	db.First(&stored, "id = ?", match.ID)
	if stored.Status == models.MatchStatusFinished {
		t.Error("tied match marked finished")
	}
}

func TestComputeResultTieBreakPending(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p1.ID, true, true)
	seedOpenRound(t, db, match.ID, match.CreatedAt, true)

	result, err := svc.ComputeResult(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Status != ResultStatusTieBreakPending {
		t.Errorf("status = %q, want %q", result.Status, ResultStatusTieBreakPending)
	}
	if len(result.ExtraRounds) != 0 {
		t.Errorf("issued %d extra rounds while a batch is pending", len(result.ExtraRounds))
	}
}

func TestComputeResultExtraRoundsBreakTie(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, false)
	// Sudden death: alice converts two extras, bob one.
	seedAnsweredRound(t, db, match.ID, p1.ID, true, true)
	seedAnsweredRound(t, db, match.ID, p1.ID, true, true)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, true)
	seedAnsweredRound(t, db, match.ID, p2.ID, false, true)

	result, err := svc.ComputeResult(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if result.Tied {
		t.Error("tied = true after decisive extra rounds")
	}
	if len(result.Winners) != 1 || result.Winners[0] != p1.ID {
		t.Errorf("winners = %v, want [%s]", result.Winners, p1.ID)
	}
	// Base scores are reported unchanged by the tie-break.
	if result.Scores[p1.ID] != 1 || result.Scores[p2.ID] != 1 {
		t.Errorf("scores = %v, want the 1-1 base tally", result.Scores)
	}

	var stored models.Match
	db.First(&stored, "id = ?", match.ID)
	if stored.Status != models.MatchStatusFinished || stored.WinnerID == nil || *stored.WinnerID != p1.ID {
		t.Error("match not finished with the tie-break winner")
	}
}

func TestComputeResultPersistentTieIssuesAnotherBatch(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p1.ID, true, true)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, true)

	result, err := svc.ComputeResult(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !result.Tied {
		t.Error("tied = false, want true")
	}
	if result.Status != ResultStatusTieBreakRepeated {
		t.Errorf("status = %q, want %q", result.Status, ResultStatusTieBreakRepeated)
	}
	if len(result.ExtraRounds) != 10 {
		t.Errorf("new batch = %d rounds, want 10", len(result.ExtraRounds))
	}
}

func TestComputeResultDoesNotDoubleCreditWins(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, false, false)

	for i := 0; i < 2; i++ {
		if _, err := svc.ComputeResult(context.Background(), match.ID); err != nil {
			t.Fatalf("compute #%d: %v", i+1, err)
		}
	}

	var winner models.Player
	db.First(&winner, "id = ?", p1.ID)
	if winner.Wins != 1 {
		t.Errorf("wins = %d, want 1 after repeated result calls", winner.Wins)
	}
}

func TestComputeResultTournamentMatchLeavesWinsToBracket(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeTournament, p1.ID, p2.ID)
	svc := NewResultService(db, DefaultGameRules, &stubGenerator{})

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, false, false)

	if _, err := svc.ComputeResult(context.Background(), match.ID); err != nil {
		t.Fatalf("compute: %v", err)
	}

	var stored models.Match
	db.First(&stored, "id = ?", match.ID)
	if stored.Status != models.MatchStatusFinished {
		t.Errorf("match status = %q, want finished", stored.Status)
	}
	var winner models.Player
	db.First(&winner, "id = ?", p1.ID)
	if winner.Wins != 0 {
		t.Errorf("wins = %d, want 0 (credited by the bracket engine)", winner.Wins)
	}
}

func TestComputeResultTieUpstreamFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	p1 := seedPlayer(t, db, "alice")
	p2 := seedPlayer(t, db, "bob")
	match := seedMatch(t, db, models.MatchTypeCasual, p1.ID, p2.ID)

	gen := &stubGenerator{}
	svc := NewResultService(db, DefaultGameRules, gen)

	seedAnsweredRound(t, db, match.ID, p1.ID, true, false)
	seedAnsweredRound(t, db, match.ID, p2.ID, true, false)

	gen.err = errors.New("boom")
	if _, err := svc.ComputeResult(context.Background(), match.ID); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	var flagged int64
	db.Model(&models.MatchQuestion{}).
		Where("match_id = ? AND is_extra_round = ?", match.ID, true).
		Count(&flagged)
	if flagged != 0 {
		t.Errorf("partial extra batch persisted: %d rounds", flagged)
	}
}
