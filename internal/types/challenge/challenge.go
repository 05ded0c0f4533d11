package challenge

import (
	"time"

	"github.com/google/uuid"
)

type ProgressStatus string

const (
	StatusActive    ProgressStatus = "active"
	StatusPaused    ProgressStatus = "paused"
	StatusCompleted ProgressStatus = "completed"
)

// Template is the admin-owned challenge definition. The engine reads it
// fresh on every operation and never mutates it.
type Template struct {
	ID               uuid.UUID `json:"id" db:"id"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	DailyTargetCount int       `json:"daily_target_count" db:"daily_target_count"`
	TotalDays        int       `json:"total_days" db:"total_days"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Progress is the per-user, per-challenge state machine row. Mutated only
// by the progress service.
type Progress struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	UserID             uuid.UUID      `json:"user_id" db:"user_id"`
	ChallengeID        uuid.UUID      `json:"challenge_id" db:"challenge_id"`
	CurrentDay         int            `json:"current_day" db:"current_day"`
	Status             ProgressStatus `json:"status" db:"status"`
	CurrentStreak      int            `json:"current_streak" db:"current_streak"`
	LongestStreak      int            `json:"longest_streak" db:"longest_streak"`
	TotalCompletedDays int            `json:"total_completed_days" db:"total_completed_days"`
	MissedDays         int            `json:"missed_days" db:"missed_days"`
	StartedAt          time.Time      `json:"started_at" db:"started_at"`
	LastCompletedAt    *time.Time     `json:"last_completed_at" db:"last_completed_at"`
	CompletedAt        *time.Time     `json:"completed_at" db:"completed_at"`
	PausedAt           *time.Time     `json:"paused_at" db:"paused_at"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// CompleteDayResult is returned to the caller after a complete-day
// transition.
type CompleteDayResult struct {
	IsCompleted          bool `json:"is_completed"`
	IsChallengeCompleted bool `json:"is_challenge_completed"`
	NewStreak            int  `json:"new_streak"`
}

// TemplateStats are derived on read from progress rows; nothing stores or
// increments these totals.
type TemplateStats struct {
	ChallengeID       uuid.UUID `json:"challenge_id"`
	TotalParticipants int       `json:"total_participants"`
	TotalCompletions  int       `json:"total_completions"`
}
