package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"deenStreakAPI/internal/apperr"
	"deenStreakAPI/internal/timeutil"
	"deenStreakAPI/internal/types/challenge"
	"deenStreakAPI/internal/types/dailylog"
	"deenStreakAPI/middleware"
)

const progressColumns = `id, user_id, challenge_id, current_day, status, current_streak,
	longest_streak, total_completed_days, missed_days, started_at,
	last_completed_at, completed_at, paused_at, created_at, updated_at`

// ProgressService owns the per-challenge progress state machine. Every
// mutation of a progress row goes through here, and the complete-day
// transition runs log write and counter update in one transaction under a
// row lock, so concurrent calls for the same progress serialize.
type ProgressService struct {
	db    *pgxpool.Pool
	logs  *DailyLogService
	clock *timeutil.Clock
}

func NewProgressService(db *pgxpool.Pool, logs *DailyLogService, clock *timeutil.Clock) *ProgressService {
	return &ProgressService{db: db, logs: logs, clock: clock}
}

// Start creates a fresh active progress record for (user, challenge).
// Fails with a conflict when an active or paused record already exists;
// the partial unique index backstops the pre-check under concurrency.
func (s *ProgressService) Start(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.Progress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	if _, err := s.getTemplate(ctx, s.db, challengeID); err != nil {
		return nil, err
	}

	var inFlight bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_challenge_progress
			WHERE user_id = $1 AND challenge_id = $2 AND status IN ('active', 'paused')
		)`, userID, challengeID).Scan(&inFlight)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing progress: %w", err)
	}
	if inFlight {
		return nil, fmt.Errorf("challenge already in progress: %w", apperr.ErrConflict)
	}

	query := `
	INSERT INTO user_challenge_progress (user_id, challenge_id, started_at)
	VALUES ($1, $2, $3)
	RETURNING ` + progressColumns

	progress, err := scanProgress(s.db.QueryRow(ctx, query, userID, challengeID, s.clock.Now()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("challenge already in progress: %w", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create progress for user %s challenge %s: %w", userID, challengeID, err)
	}

	return progress, nil
}

// CompleteDay records the day's count and folds it into the streak
// counters. dayNumber must be the progress's current day; the previous day
// is also accepted as a replay or amendment of its existing log, in which
// case counters move only on an is_completed transition and the cursor
// stays put. Replaying an identical call is therefore a no-op.
func (s *ProgressService) CompleteDay(ctx context.Context, clerkID string, progressID uuid.UUID, dayNumber, countCompleted, targetCount int, mood, notes *string) (*challenge.CompleteDayResult, error) {
	if dayNumber < 1 {
		return nil, fmt.Errorf("day number must be positive: %w", apperr.ErrValidation)
	}
	if countCompleted < 0 || targetCount < 1 {
		return nil, fmt.Errorf("invalid count or target: %w", apperr.ErrValidation)
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	progress, err := s.lockProgress(ctx, tx, progressID, userID)
	if err != nil {
		return nil, err
	}
	if progress.Status != challenge.StatusActive {
		return nil, fmt.Errorf("challenge is %s, not active: %w", progress.Status, apperr.ErrConflict)
	}

	// Re-read the template inside the transaction; admins may change the
	// total between operations and the engine must not act on a stale copy.
	tmpl, err := s.getTemplate(ctx, tx, progress.ChallengeID)
	if err != nil {
		return nil, err
	}

	counted := false
	switch dayNumber {
	case progress.CurrentDay:
		// new day at the cursor
	case progress.CurrentDay - 1:
		counted = true
	default:
		return nil, fmt.Errorf("day %d does not match current day %d: %w", dayNumber, progress.CurrentDay, apperr.ErrValidation)
	}

	var prior *dailylog.Log
	if counted {
		prior, err = s.logs.findLog(ctx, tx, progressID, dayNumber)
		if err != nil {
			return nil, err
		}
		if prior == nil {
			return nil, fmt.Errorf("no log recorded for day %d: %w", dayNumber, apperr.ErrValidation)
		}
	}

	logRow, err := s.logs.upsertLog(ctx, tx, progressID, dayNumber, countCompleted, targetCount, s.clock.Today(), mood, notes)
	if err != nil {
		return nil, err
	}
	isCompleted := logRow.IsCompleted

	newStreak := progress.CurrentStreak
	newTotal := progress.TotalCompletedDays
	newMissed := progress.MissedDays
	newCurrentDay := progress.CurrentDay

	if !counted {
		if isCompleted {
			newStreak = progress.CurrentStreak + 1
			newTotal++
		} else {
			newStreak = 0
			newMissed++
		}
		newCurrentDay = dayNumber + 1
	} else if prior.IsCompleted != isCompleted {
		if isCompleted {
			newTotal++
			newMissed--
		} else {
			newTotal--
			newMissed++
		}
		// The stored streak was computed with the old outcome; rebuild it
		// from the ledger ending at the amended day.
		newStreak, err = s.logs.streakEndingAt(ctx, tx, progressID, dayNumber)
		if err != nil {
			return nil, err
		}
	}

	newLongest := progress.LongestStreak
	if newStreak > newLongest {
		newLongest = newStreak
	}

	isChallengeCompleted := newTotal >= tmpl.TotalDays

	query := `
	UPDATE user_challenge_progress SET
		current_day = $2,
		current_streak = $3,
		longest_streak = $4,
		total_completed_days = $5,
		missed_days = $6,
		last_completed_at = CASE WHEN $7 THEN NOW() ELSE last_completed_at END,
		status = CASE WHEN $8 THEN 'completed' ELSE status END,
		completed_at = CASE WHEN $8 THEN COALESCE(completed_at, NOW()) ELSE completed_at END,
		updated_at = NOW()
	WHERE id = $1`

	if _, err := tx.Exec(ctx, query, progressID, newCurrentDay, newStreak, newLongest,
		newTotal, newMissed, isCompleted, isChallengeCompleted); err != nil {
		return nil, fmt.Errorf("failed to update progress %s: %w", progressID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit complete-day for progress %s: %w", progressID, err)
	}

	if isChallengeCompleted && progress.CompletedAt == nil {
		middleware.ChallengeCompletionsTotal.Inc()
	}

	return &challenge.CompleteDayResult{
		IsCompleted:          isCompleted,
		IsChallengeCompleted: isChallengeCompleted,
		NewStreak:            newStreak,
	}, nil
}

// Restart wipes the ledger and resets the progress record to a fresh
// active state, as if the user had just started.
func (s *ProgressService) Restart(ctx context.Context, clerkID string, progressID uuid.UUID) (*challenge.Progress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.lockProgress(ctx, tx, progressID, userID); err != nil {
		return nil, err
	}

	if err := s.logs.clearLogs(ctx, tx, progressID); err != nil {
		return nil, err
	}

	query := `
	UPDATE user_challenge_progress SET
		current_day = 1,
		status = 'active',
		current_streak = 0,
		longest_streak = 0,
		total_completed_days = 0,
		missed_days = 0,
		started_at = $2,
		last_completed_at = NULL,
		completed_at = NULL,
		paused_at = NULL,
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + progressColumns

	progress, err := scanProgress(tx.QueryRow(ctx, query, progressID, s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to restart progress %s: %w", progressID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit restart for progress %s: %w", progressID, err)
	}

	return progress, nil
}

// Pause moves an active progress out of the reconciliation sweep.
func (s *ProgressService) Pause(ctx context.Context, clerkID string, progressID uuid.UUID) (*challenge.Progress, error) {
	return s.toggleStatus(ctx, clerkID, progressID, challenge.StatusActive, challenge.StatusPaused)
}

// Resume reactivates a paused progress. Counters are untouched.
func (s *ProgressService) Resume(ctx context.Context, clerkID string, progressID uuid.UUID) (*challenge.Progress, error) {
	return s.toggleStatus(ctx, clerkID, progressID, challenge.StatusPaused, challenge.StatusActive)
}

func (s *ProgressService) toggleStatus(ctx context.Context, clerkID string, progressID uuid.UUID, from, to challenge.ProgressStatus) (*challenge.Progress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	UPDATE user_challenge_progress SET
		status = $4,
		paused_at = CASE WHEN $4 = 'paused' THEN NOW() ELSE NULL END,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND status = $3
	RETURNING ` + progressColumns

	progress, err := scanProgress(s.db.QueryRow(ctx, query, progressID, userID, from, to))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a wrong-state row from a missing one.
			current, getErr := s.GetProgress(ctx, clerkID, progressID)
			if getErr != nil {
				return nil, getErr
			}
			return nil, fmt.Errorf("challenge is %s, not %s: %w", current.Status, from, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("failed to set progress %s to %s: %w", progressID, to, err)
	}

	return progress, nil
}

// GetProgress returns the caller's progress record.
func (s *ProgressService) GetProgress(ctx context.Context, clerkID string, progressID uuid.UUID) (*challenge.Progress, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + progressColumns + `
	FROM user_challenge_progress WHERE id = $1 AND user_id = $2`

	progress, err := scanProgress(s.db.QueryRow(ctx, query, progressID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("progress %s: %w", progressID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get progress %s: %w", progressID, err)
	}

	return progress, nil
}

// GetCalendar returns the month view of a progress's daily logs.
func (s *ProgressService) GetCalendar(ctx context.Context, clerkID string, progressID uuid.UUID, year int, month time.Month) (*dailylog.CalendarResponse, error) {
	if _, err := s.GetProgress(ctx, clerkID, progressID); err != nil {
		return nil, err
	}

	logs, err := s.logs.LogsForMonth(ctx, progressID, year, month, s.clock.Location())
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]*dailylog.Log, len(logs))
	for _, l := range logs {
		byDate[l.CompletionDate.Format("2006-01-02")] = l
	}

	today := s.clock.Today()
	first := time.Date(year, month, 1, 0, 0, 0, 0, s.clock.Location())

	resp := &dailylog.CalendarResponse{Year: year, Month: int(month)}
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		day := &dailylog.CalendarDay{
			Date:    d,
			IsToday: d.Equal(today),
		}
		if l, ok := byDate[d.Format("2006-01-02")]; ok {
			day.Logged = true
			day.DayNumber = l.DayNumber
			day.Completed = l.IsCompleted
		}
		resp.Days = append(resp.Days, day)
	}

	return resp, nil
}

// GetTemplateStats derives participant and completion totals from progress
// rows on read. Nothing increments stored counters, so the numbers cannot
// drift.
func (s *ProgressService) GetTemplateStats(ctx context.Context, challengeID uuid.UUID) (*challenge.TemplateStats, error) {
	if _, err := s.getTemplate(ctx, s.db, challengeID); err != nil {
		return nil, err
	}

	query := `
	SELECT
		COUNT(*) AS total_participants,
		COUNT(*) FILTER (WHERE status = 'completed') AS total_completions
	FROM user_challenge_progress
	WHERE challenge_id = $1`

	stats := &challenge.TemplateStats{ChallengeID: challengeID}
	err := s.db.QueryRow(ctx, query, challengeID).Scan(&stats.TotalParticipants, &stats.TotalCompletions)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats for challenge %s: %w", challengeID, err)
	}

	return stats, nil
}

func (s *ProgressService) getTemplate(ctx context.Context, q querier, challengeID uuid.UUID) (*challenge.Template, error) {
	query := `
	SELECT id, title, description, daily_target_count, total_days, created_at
	FROM challenge_templates WHERE id = $1`

	t := &challenge.Template{}
	err := q.QueryRow(ctx, query, challengeID).Scan(
		&t.ID, &t.Title, &t.Description, &t.DailyTargetCount, &t.TotalDays, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("challenge %s: %w", challengeID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get challenge %s: %w", challengeID, err)
	}
	return t, nil
}

func (s *ProgressService) lockProgress(ctx context.Context, tx pgx.Tx, progressID, userID uuid.UUID) (*challenge.Progress, error) {
	query := `SELECT ` + progressColumns + `
	FROM user_challenge_progress WHERE id = $1 AND user_id = $2 FOR UPDATE`

	progress, err := scanProgress(tx.QueryRow(ctx, query, progressID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("progress %s: %w", progressID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock progress %s: %w", progressID, err)
	}
	return progress, nil
}

func scanProgress(row rowScanner) (*challenge.Progress, error) {
	p := &challenge.Progress{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.ChallengeID,
		&p.CurrentDay,
		&p.Status,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.TotalCompletedDays,
		&p.MissedDays,
		&p.StartedAt,
		&p.LastCompletedAt,
		&p.CompletedAt,
		&p.PausedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
