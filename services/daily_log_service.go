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

	"deenStreakAPI/internal/types/dailylog"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the log store
// can run standalone or inside the progress service's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const dailyLogColumns = `id, progress_id, day_number, completion_date, count_completed,
	target_count, is_completed, completed_at, mood, notes, created_at, updated_at`

type DailyLogService struct {
	db *pgxpool.Pool
}

func NewDailyLogService(db *pgxpool.Pool) *DailyLogService {
	return &DailyLogService{db: db}
}

// UpsertLog writes the ledger row for (progressID, dayNumber). Repeated
// calls with the same key overwrite count/target/completion fields instead
// of inserting duplicates. completion_date is fixed at first write: an
// amendment changes the outcome of the day, never which calendar date it
// was. completed_at is kept from the first completion, set on a fresh
// completion and cleared when the day is no longer complete.
func (s *DailyLogService) UpsertLog(ctx context.Context, progressID uuid.UUID, dayNumber, countCompleted, targetCount int, completionDate time.Time, mood, notes *string) (*dailylog.Log, error) {
	return s.upsertLog(ctx, s.db, progressID, dayNumber, countCompleted, targetCount, completionDate, mood, notes)
}

func (s *DailyLogService) upsertLog(ctx context.Context, q querier, progressID uuid.UUID, dayNumber, countCompleted, targetCount int, completionDate time.Time, mood, notes *string) (*dailylog.Log, error) {
	isCompleted := countCompleted >= targetCount

	query := `
	INSERT INTO daily_logs (
		progress_id, day_number, completion_date, count_completed,
		target_count, is_completed, completed_at, mood, notes
	)
	VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $6 THEN NOW() END, $7, $8)
	ON CONFLICT (progress_id, day_number)
	DO UPDATE SET
		count_completed = EXCLUDED.count_completed,
		target_count    = EXCLUDED.target_count,
		is_completed    = EXCLUDED.is_completed,
		completed_at    = CASE WHEN EXCLUDED.is_completed
								THEN COALESCE(daily_logs.completed_at, NOW())
								ELSE NULL END,
		mood            = EXCLUDED.mood,
		notes           = EXCLUDED.notes,
		updated_at      = NOW()
	RETURNING ` + dailyLogColumns

	row := q.QueryRow(ctx, query, progressID, dayNumber, completionDate,
		countCompleted, targetCount, isCompleted, mood, notes)

	logRow, err := scanDailyLog(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert daily log for progress %s day %d: %w", progressID, dayNumber, err)
	}
	return logRow, nil
}

// FindLog returns nil when no row exists for (progressID, dayNumber).
func (s *DailyLogService) FindLog(ctx context.Context, progressID uuid.UUID, dayNumber int) (*dailylog.Log, error) {
	return s.findLog(ctx, s.db, progressID, dayNumber)
}

func (s *DailyLogService) findLog(ctx context.Context, q querier, progressID uuid.UUID, dayNumber int) (*dailylog.Log, error) {
	query := `SELECT ` + dailyLogColumns + ` FROM daily_logs WHERE progress_id = $1 AND day_number = $2`

	logRow, err := scanDailyLog(q.QueryRow(ctx, query, progressID, dayNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find daily log for progress %s day %d: %w", progressID, dayNumber, err)
	}
	return logRow, nil
}

// ClearLogs bulk-deletes every log for a progress record. Restart only.
func (s *DailyLogService) ClearLogs(ctx context.Context, progressID uuid.UUID) error {
	return s.clearLogs(ctx, s.db, progressID)
}

func (s *DailyLogService) clearLogs(ctx context.Context, q querier, progressID uuid.UUID) error {
	_, err := q.Exec(ctx, `DELETE FROM daily_logs WHERE progress_id = $1`, progressID)
	if err != nil {
		return fmt.Errorf("failed to clear daily logs for progress %s: %w", progressID, err)
	}
	return nil
}

// LogsForMonth returns the logs whose completion_date falls inside the
// given month, ordered by day number. Used by the calendar view.
func (s *DailyLogService) LogsForMonth(ctx context.Context, progressID uuid.UUID, year int, month time.Month, loc *time.Location) ([]*dailylog.Log, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)

	query := `SELECT ` + dailyLogColumns + `
	FROM daily_logs
	WHERE progress_id = $1 AND completion_date >= $2 AND completion_date < $3
	ORDER BY day_number`

	rows, err := s.db.Query(ctx, query, progressID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load logs for progress %s: %w", progressID, err)
	}
	defer rows.Close()

	var logs []*dailylog.Log
	for rows.Next() {
		logRow, err := scanDailyLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily log: %w", err)
		}
		logs = append(logs, logRow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily logs: %w", err)
	}

	return logs, nil
}

// streakEndingAt walks the ledger backwards from dayNumber and counts the
// consecutive completed days ending there. Used when an already-counted day
// is amended and the stored streak can no longer be trusted.
func (s *DailyLogService) streakEndingAt(ctx context.Context, q querier, progressID uuid.UUID, dayNumber int) (int, error) {
	query := `
	SELECT day_number, is_completed
	FROM daily_logs
	WHERE progress_id = $1 AND day_number <= $2
	ORDER BY day_number DESC`

	rows, err := q.Query(ctx, query, progressID, dayNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to walk logs for progress %s: %w", progressID, err)
	}
	defer rows.Close()

	streak := 0
	expected := dayNumber
	for rows.Next() {
		var day int
		var completed bool
		if err := rows.Scan(&day, &completed); err != nil {
			return 0, fmt.Errorf("failed to scan log row: %w", err)
		}
		// A gap in day numbers breaks the streak just like a miss.
		if day != expected || !completed {
			break
		}
		streak++
		expected--
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating log rows: %w", err)
	}

	return streak, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDailyLog(row rowScanner) (*dailylog.Log, error) {
	l := &dailylog.Log{}
	err := row.Scan(
		&l.ID,
		&l.ProgressID,
		&l.DayNumber,
		&l.CompletionDate,
		&l.CountCompleted,
		&l.TargetCount,
		&l.IsCompleted,
		&l.CompletedAt,
		&l.Mood,
		&l.Notes,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
