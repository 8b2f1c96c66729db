package models

import "time"

// Question is one generated quiz item. Options holds a JSON-encoded
// label -> text map (labels A-D). Immutable once created.
type Question struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Text          string `json:"text" gorm:"not null"`
	Options       string `json:"options" gorm:"type:text;not null"`
	CorrectOption string `json:"correct_option" gorm:"type:varchar(8);not null"`
	Tip           string `json:"tip"`

	Timestamps
}

// MatchQuestion links a question to the match it was issued in. At most one
// player ever answers it; the answer fields are written exactly once.
type MatchQuestion struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	MatchID      string    `json:"match_id" gorm:"not null;index"`
	QuestionID   string    `json:"question_id" gorm:"not null;index"`
	IsExtraRound bool      `json:"is_extra_round" gorm:"default:false"`
	SentAt       time.Time `json:"sent_at" gorm:"not null"`

	AnsweredByID   *string `json:"answered_by_id,omitempty" gorm:"index"`
	SelectedOption string  `json:"selected_option,omitempty"`
	TimeTaken      float64 `json:"time_taken,omitempty"`
	IsCorrect      bool    `json:"is_correct" gorm:"default:false"`

	Timestamps
}
