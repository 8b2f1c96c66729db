package models

const (
	TournamentStatusWaiting    = "waiting"
	TournamentStatusInProgress = "in_progress"
	TournamentStatusFinished   = "finished"
)

const TournamentTypeElimination = "elimination"

// Tournament is a single-elimination bracket. At most one tournament sits in
// `waiting` collecting enrollments; once the quota is met it moves to
// `in_progress` and finally `finished` with a champion.
type Tournament struct {
	ID             string  `json:"id" gorm:"primaryKey"`
	Status         string  `json:"status" gorm:"default:'waiting';index"`
	TournamentType string  `json:"tournament_type" gorm:"type:varchar(16);default:'elimination'"`
	WinnerID       *string `json:"winner_id,omitempty"`

	Matches []TournamentMatch `json:"matches,omitempty" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// TournamentEntry records one enrollment in a waiting tournament. Replaces
// the in-memory enrollment list so concurrent joins cannot lose each other.
type TournamentEntry struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID string `json:"tournament_id" gorm:"not null;index:idx_tournament_player,unique"`
	PlayerID     string `json:"player_id" gorm:"not null;index:idx_tournament_player,unique"`

	Timestamps
}

// TournamentMatch is one bracket slot: it ties a playable Match to its
// tournament and round. Player2ID is nil on a bye, in which case the winner
// is preset and the slot auto-advances.
type TournamentMatch struct {
	ID           string  `json:"id" gorm:"primaryKey"`
	TournamentID string  `json:"tournament_id" gorm:"not null;index"`
	MatchID      string  `json:"match_id" gorm:"not null;index"`
	RoundNumber  int     `json:"round_number" gorm:"not null;index"`
	Player1ID    string  `json:"player1_id" gorm:"not null"`
	Player2ID    *string `json:"player2_id,omitempty"`
	WinnerID     *string `json:"winner_id,omitempty"`

	Timestamps
}
