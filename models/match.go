package models

import "time"

const (
	MatchStatusWaiting    = "waiting"
	MatchStatusInProgress = "in_progress"
	MatchStatusFinished   = "finished"
)

const (
	MatchTypeCasual     = "casual"
	MatchTypeTournament = "tournament"
)

const (
	MatchPlayerWaiting = "waiting"
	MatchPlayerPlaying = "playing"
)

// Match is a single 1v1 duel. A casual match starts as `waiting` with one
// slot filled and moves to `in_progress` when an opponent connects;
// tournament matches are created with both slots already assigned.
type Match struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	Status     string     `json:"status" gorm:"default:'waiting';index"`
	MatchType  string     `json:"match_type" gorm:"type:varchar(16);default:'casual'"`
	WinnerID   *string    `json:"winner_id,omitempty" gorm:"index"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Players []MatchPlayer `json:"players,omitempty" gorm:"foreignKey:MatchID"`

	Timestamps
}

// MatchPlayer occupies one of a match's two slots.
type MatchPlayer struct {
	ID       string `json:"id" gorm:"primaryKey"`
	MatchID  string `json:"match_id" gorm:"not null;index"`
	PlayerID string `json:"player_id" gorm:"not null;index"`
	Status   string `json:"status" gorm:"type:varchar(16);default:'waiting'"`

	Timestamps
}
