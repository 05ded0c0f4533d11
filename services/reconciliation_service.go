package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"deenStreakAPI/internal/timeutil"
	"deenStreakAPI/internal/types/device"
	"deenStreakAPI/internal/types/missed"
	"deenStreakAPI/middleware"
	"deenStreakAPI/utils"
)

// PushProvider delivers the best-effort "streak at risk" notification after
// a sweep. Satisfied by notification.FCMService; nil disables pushes.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []*device.Token, title, body string, data map[string]string) error
}

// ReconciliationService back-fills missed records for calendar days an
// active challenge's target was not met. It is read-then-insert only: a
// failed run needs no cleanup and is simply retried on the next schedule.
type ReconciliationService struct {
	db      *pgxpool.Pool
	clock   *timeutil.Clock
	devices *DeviceService
	push    PushProvider
}

func NewReconciliationService(db *pgxpool.Pool, clock *timeutil.Clock, devices *DeviceService) *ReconciliationService {
	return &ReconciliationService{db: db, clock: clock, devices: devices}
}

// SetPushProvider wires the optional push sink.
func (s *ReconciliationService) SetPushProvider(p PushProvider) {
	s.push = p
}

type missedPair struct {
	userID      uuid.UUID
	challengeID uuid.UUID
}

// Run sweeps every active progress record and inserts one missed record per
// (user, challenge) whose yesterday has no completed log. Inserts conflict-
// skip on (user_id, challenge_id, missed_date), so re-running the sweep for
// the same day never double-counts.
func (s *ReconciliationService) Run(ctx context.Context) (*missed.RunReport, error) {
	start := time.Now()
	yesterday := s.clock.Yesterday()
	today := s.clock.Today()

	var scanned int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_challenge_progress
		WHERE status = 'active' AND started_at < $1`, today).Scan(&scanned)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to count active progress: %w", err)
	}

	// Active challenges that were already running yesterday and have no
	// completed log for it. Progress started today is excluded: the
	// challenge was not live on the day being judged.
	query := `
	SELECT p.user_id, p.challenge_id
	FROM user_challenge_progress p
	WHERE p.status = 'active'
	  AND p.started_at < $2
	  AND NOT EXISTS (
		SELECT 1 FROM daily_logs dl
		WHERE dl.progress_id = p.id
		  AND dl.completion_date = $1
		  AND dl.is_completed
	  )`

	rows, err := s.db.Query(ctx, query, yesterday, today)
	if err != nil {
		return nil, fmt.Errorf("reconciliation: failed to find missed challenges: %w", err)
	}
	defer rows.Close()

	var pairs []missedPair
	for rows.Next() {
		var p missedPair
		if err := rows.Scan(&p.userID, &p.challengeID); err != nil {
			return nil, fmt.Errorf("reconciliation: failed to scan row: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reconciliation: error iterating rows: %w", err)
	}

	inserted := 0
	for _, p := range pairs {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO missed_challenge_records (user_id, challenge_id, missed_date, reason, was_active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (user_id, challenge_id, missed_date) DO NOTHING`,
			p.userID, p.challengeID, yesterday, missed.ReasonNotCompleted)
		if err != nil {
			return nil, fmt.Errorf("reconciliation: failed to insert missed record for user %s challenge %s: %w",
				p.userID, p.challengeID, err)
		}
		inserted += int(tag.RowsAffected())
	}

	report := &missed.RunReport{
		Day:         yesterday,
		Scanned:     scanned,
		MissedCount: inserted,
		DurationMs:  time.Since(start).Milliseconds(),
	}

	middleware.ReconciliationRunsTotal.Inc()
	middleware.ReconciliationMissedTotal.Add(float64(inserted))

	if utils.Logger != nil {
		utils.Logger.Info("reconciliation run finished",
			zap.String("day", yesterday.Format("2006-01-02")),
			zap.Int("scanned", report.Scanned),
			zap.Int("missed_count", report.MissedCount),
			zap.Int64("duration_ms", report.DurationMs),
		)
	}

	if inserted > 0 {
		s.notifyMissedUsers(ctx, pairs)
	}

	return report, nil
}

// notifyMissedUsers sends one push per user who missed at least one
// challenge yesterday. Failures are logged and swallowed; the sweep result
// never depends on delivery.
func (s *ReconciliationService) notifyMissedUsers(ctx context.Context, pairs []missedPair) {
	if s.push == nil {
		return
	}

	missedPerUser := make(map[uuid.UUID]int)
	for _, p := range pairs {
		missedPerUser[p.userID]++
	}

	for userID, count := range missedPerUser {
		tokens, err := s.devices.TokensForUser(ctx, userID)
		if err != nil {
			if utils.Sugar != nil {
				utils.Sugar.Warnw("failed to load device tokens", "user_id", userID, "error", err)
			}
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		body := "You missed a challenge yesterday. Complete today to rebuild your streak."
		if count > 1 {
			body = fmt.Sprintf("You missed %d challenges yesterday. Complete today to rebuild your streaks.", count)
		}

		if err := s.push.SendPush(ctx, tokens, "Your streak is at risk", body, map[string]string{
			"type": "missed_challenge",
		}); err != nil && utils.Sugar != nil {
			utils.Sugar.Warnw("failed to send missed-challenge push", "user_id", userID, "error", err)
		}
	}
}
