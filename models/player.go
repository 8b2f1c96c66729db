package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is a duel participant identified by a unique handle.
// Rows are never deleted; Wins accumulates across casual matches and tournaments.
type Player struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Username string `json:"username" gorm:"uniqueIndex;not null"`
	Wins     int64  `json:"wins" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
