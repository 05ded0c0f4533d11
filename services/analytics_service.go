package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deenStreakAPI/internal/apperr"
	"deenStreakAPI/internal/cache"
	"deenStreakAPI/internal/timeutil"
	"deenStreakAPI/internal/types/missed"
)

const missedSummaryTTL = 5 * time.Minute

// AnalyticsService serves the read-only dashboard views over the missed
// ledger and daily logs. No mutation, no state beyond the optional cache.
type AnalyticsService struct {
	db    *pgxpool.Pool
	clock *timeutil.Clock
	cache *cache.Cache
}

func NewAnalyticsService(db *pgxpool.Pool, clock *timeutil.Clock, c *cache.Cache) *AnalyticsService {
	return &AnalyticsService{db: db, clock: clock, cache: c}
}

// GetMissedSummary returns the trailing-window miss count and the most
// frequently missed challenge for the caller. windowDays must be 7 or 30.
func (s *AnalyticsService) GetMissedSummary(ctx context.Context, clerkID string, windowDays int) (*missed.Summary, error) {
	if windowDays != 7 && windowDays != 30 {
		return nil, fmt.Errorf("window must be 7 or 30 days: %w", apperr.ErrValidation)
	}

	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("missed_summary:%s:%d", userID, windowDays)
	cached := &missed.Summary{}
	if s.cache.GetJSON(ctx, cacheKey, cached) {
		return cached, nil
	}

	// Misses exist only for dates up to yesterday, so the N-day window is
	// [today-N, yesterday] inclusive: exactly N judgeable dates.
	since := s.clock.Today().AddDate(0, 0, -windowDays)

	summary := &missed.Summary{
		WindowDays:  windowDays,
		GeneratedAt: s.clock.Now(),
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM missed_challenge_records
		WHERE user_id = $1 AND missed_date >= $2`, userID, since).Scan(&summary.MissedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count missed records: %w", err)
	}

	mostMissed := &missed.ChallengeMissCount{}
	err = s.db.QueryRow(ctx, `
		SELECT m.challenge_id, t.title, COUNT(*) AS miss_count
		FROM missed_challenge_records m
		JOIN challenge_templates t ON t.id = m.challenge_id
		WHERE m.user_id = $1 AND m.missed_date >= $2
		GROUP BY m.challenge_id, t.title
		ORDER BY miss_count DESC, t.title
		LIMIT 1`, userID, since).Scan(&mostMissed.ChallengeID, &mostMissed.Title, &mostMissed.MissCount)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to find most-missed challenge: %w", err)
		}
	} else {
		summary.MostMissed = mostMissed
	}

	s.cache.SetJSON(ctx, cacheKey, summary, missedSummaryTTL)

	return summary, nil
}

// GetCompletionCounts returns completed-day totals for the caller over the
// trailing 7 and 30 day windows, derived from the daily log ledger.
func (s *AnalyticsService) GetCompletionCounts(ctx context.Context, clerkID string) (map[string]int, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	// Completions can land on today itself, so the strict bound spans
	// exactly N dates: [today-N+1, today].
	query := `
	SELECT
		COUNT(*) FILTER (WHERE dl.completion_date > $2) AS last_7,
		COUNT(*) FILTER (WHERE dl.completion_date > $3) AS last_30
	FROM daily_logs dl
	JOIN user_challenge_progress p ON p.id = dl.progress_id
	WHERE p.user_id = $1 AND dl.is_completed`

	var last7, last30 int
	err = s.db.QueryRow(ctx, query, userID,
		today.AddDate(0, 0, -7), today.AddDate(0, 0, -30)).Scan(&last7, &last30)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	return map[string]int{
		"completed_last_7_days":  last7,
		"completed_last_30_days": last30,
	}, nil
}
