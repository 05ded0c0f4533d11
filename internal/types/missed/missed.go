package missed

import (
	"time"

	"github.com/google/uuid"
)

const ReasonNotCompleted = "not_completed"

// Record marks one calendar day an active challenge went uncompleted.
// Created only by the reconciliation job, append-only.
type Record struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	ChallengeID uuid.UUID `json:"challenge_id" db:"challenge_id"`
	MissedDate  time.Time `json:"missed_date" db:"missed_date"`
	Reason      string    `json:"reason" db:"reason"`
	WasActive   bool      `json:"was_active" db:"was_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ChallengeMissCount is a grouped count for the most-missed view.
type ChallengeMissCount struct {
	ChallengeID uuid.UUID `json:"challenge_id"`
	Title       string    `json:"title"`
	MissCount   int       `json:"miss_count"`
}

// Summary is the dashboard read model over a trailing window.
type Summary struct {
	WindowDays  int                 `json:"window_days"`
	MissedCount int                 `json:"missed_count"`
	MostMissed  *ChallengeMissCount `json:"most_missed,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// RunReport is what one reconciliation sweep emits for observability.
type RunReport struct {
	Day         time.Time `json:"day"`
	Scanned     int       `json:"scanned"`
	MissedCount int       `json:"missed_count"`
	DurationMs  int64     `json:"duration_ms"`
}
