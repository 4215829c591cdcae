package models

import "time"

// UserStatistics are derived aggregate counters recomputed after each
// successful match batch. They are a read model, never the system of record.
type UserStatistics struct {
	UserID        string     `json:"user_id" db:"user_id"`
	TotalDrops    int64      `json:"total_drops" db:"total_drops"`
	MatchedDrops  int64      `json:"matched_drops" db:"matched_drops"`
	TotalGifted   int64      `json:"total_gifted" db:"total_gifted"`
	CurrentStreak int        `json:"current_streak" db:"current_streak"`
	LastMatchedAt *time.Time `json:"last_matched_at,omitempty" db:"last_matched_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
