package dailylog

import (
	"time"

	"github.com/google/uuid"
)

// Log is one day's attempt within a challenge: count achieved against the
// target, unique per (progress_id, day_number).
type Log struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ProgressID     uuid.UUID  `json:"progress_id" db:"progress_id"`
	DayNumber      int        `json:"day_number" db:"day_number"`
	CompletionDate time.Time  `json:"completion_date" db:"completion_date"`
	CountCompleted int        `json:"count_completed" db:"count_completed"`
	TargetCount    int        `json:"target_count" db:"target_count"`
	IsCompleted    bool       `json:"is_completed" db:"is_completed"`
	CompletedAt    *time.Time `json:"completed_at" db:"completed_at"`
	Mood           *string    `json:"mood,omitempty" db:"mood"`
	Notes          *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

type CalendarDay struct {
	Date      time.Time `json:"date"`
	DayNumber int       `json:"day_number,omitempty"`
	Completed bool      `json:"completed"`
	Logged    bool      `json:"logged"`
	IsToday   bool      `json:"is_today"`
}

type CalendarResponse struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Days  []*CalendarDay `json:"days"`
}
