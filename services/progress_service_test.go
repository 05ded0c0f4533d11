package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deenStreakAPI/internal/apperr"
	"deenStreakAPI/internal/timeutil"
	"deenStreakAPI/internal/types/challenge"
	"deenStreakAPI/internal/types/dailylog"
)

func newProgressService() *ProgressService {
	return NewProgressService(testPool, NewDailyLogService(testPool), testClock)
}

func completeDay(t *testing.T, svc *ProgressService, clerkID string, progressID uuid.UUID, day, count, target int) *challenge.CompleteDayResult {
	t.Helper()
	result, err := svc.CompleteDay(context.Background(), clerkID, progressID, day, count, target, nil, nil)
	require.NoError(t, err)
	return result
}

func TestStartChallenge(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()

	createTestUser(t, "clerk_start")
	challengeID := createTestTemplate(t, 21, 21)

	progress, err := svc.Start(context.Background(), "clerk_start", challengeID)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.CurrentDay)
	assert.Equal(t, challenge.StatusActive, progress.Status)
	assert.Equal(t, 0, progress.CurrentStreak)
	assert.Equal(t, 0, progress.LongestStreak)
	assert.Equal(t, 0, progress.TotalCompletedDays)
	assert.Equal(t, 0, progress.MissedDays)
	assert.Nil(t, progress.CompletedAt)
}

func TestStartAlreadyInProgress(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_dup")
	challengeID := createTestTemplate(t, 1, 7)

	progress, err := svc.Start(ctx, "clerk_dup", challengeID)
	require.NoError(t, err)

	_, err = svc.Start(ctx, "clerk_dup", challengeID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Paused still counts as in progress.
	_, err = svc.Pause(ctx, "clerk_dup", progress.ID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, "clerk_dup", challengeID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestStartAfterCompletionAllowed(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_again")
	challengeID := createTestTemplate(t, 1, 1)

	progress, err := svc.Start(ctx, "clerk_again", challengeID)
	require.NoError(t, err)

	result := completeDay(t, svc, "clerk_again", progress.ID, 1, 1, 1)
	require.True(t, result.IsChallengeCompleted)

	_, err = svc.Start(ctx, "clerk_again", challengeID)
	assert.NoError(t, err)
}

func TestStartUnknownChallenge(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()

	createTestUser(t, "clerk_unknown")

	_, err := svc.Start(context.Background(), "clerk_unknown", uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStartUnknownUser(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()

	challengeID := createTestTemplate(t, 1, 7)

	_, err := svc.Start(context.Background(), "clerk_missing", challengeID)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCompleteDayStreakGrowth(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_streak")
	challengeID := createTestTemplate(t, 3, 21)

	progress, err := svc.Start(ctx, "clerk_streak", challengeID)
	require.NoError(t, err)

	for day := 1; day <= 5; day++ {
		result := completeDay(t, svc, "clerk_streak", progress.ID, day, 3, 3)
		assert.True(t, result.IsCompleted)
		assert.Equal(t, day, result.NewStreak)
		assert.False(t, result.IsChallengeCompleted)
	}

	updated, err := svc.GetProgress(ctx, "clerk_streak", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.CurrentStreak)
	assert.Equal(t, 5, updated.LongestStreak)
	assert.Equal(t, 5, updated.TotalCompletedDays)
	assert.Equal(t, 0, updated.MissedDays)
	assert.Equal(t, 6, updated.CurrentDay)
	assert.NotNil(t, updated.LastCompletedAt)
	assert.GreaterOrEqual(t, updated.LongestStreak, updated.CurrentStreak)
}

func TestCompleteDayMissResetsStreak(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_miss")
	challengeID := createTestTemplate(t, 5, 21)

	progress, err := svc.Start(ctx, "clerk_miss", challengeID)
	require.NoError(t, err)

	completeDay(t, svc, "clerk_miss", progress.ID, 1, 5, 5)
	completeDay(t, svc, "clerk_miss", progress.ID, 2, 5, 5)

	result := completeDay(t, svc, "clerk_miss", progress.ID, 3, 2, 5)
	assert.False(t, result.IsCompleted)
	assert.Equal(t, 0, result.NewStreak)

	updated, err := svc.GetProgress(ctx, "clerk_miss", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.CurrentStreak)
	assert.Equal(t, 2, updated.LongestStreak)
	assert.Equal(t, 2, updated.TotalCompletedDays)
	assert.Equal(t, 1, updated.MissedDays)
	assert.Equal(t, 4, updated.CurrentDay)
}

func TestCompleteDayIdempotentReplay(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_replay")
	challengeID := createTestTemplate(t, 3, 21)

	progress, err := svc.Start(ctx, "clerk_replay", challengeID)
	require.NoError(t, err)

	first := completeDay(t, svc, "clerk_replay", progress.ID, 1, 3, 3)
	second := completeDay(t, svc, "clerk_replay", progress.ID, 1, 3, 3)

	assert.Equal(t, first.NewStreak, second.NewStreak)

	updated, err := svc.GetProgress(ctx, "clerk_replay", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalCompletedDays)
	assert.Equal(t, 1, updated.CurrentStreak)
	assert.Equal(t, 2, updated.CurrentDay)

	var logCount int
	err = testPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM daily_logs WHERE progress_id = $1 AND day_number = 1`,
		progress.ID).Scan(&logCount)
	require.NoError(t, err)
	assert.Equal(t, 1, logCount)
}

func TestCompleteDayAmendMissToComplete(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_amend")
	challengeID := createTestTemplate(t, 3, 21)

	progress, err := svc.Start(ctx, "clerk_amend", challengeID)
	require.NoError(t, err)

	result := completeDay(t, svc, "clerk_amend", progress.ID, 1, 0, 3)
	assert.False(t, result.IsCompleted)

	amended := completeDay(t, svc, "clerk_amend", progress.ID, 1, 3, 3)
	assert.True(t, amended.IsCompleted)
	assert.Equal(t, 1, amended.NewStreak)

	updated, err := svc.GetProgress(ctx, "clerk_amend", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.TotalCompletedDays)
	assert.Equal(t, 0, updated.MissedDays)
	assert.Equal(t, 1, updated.CurrentStreak)
	assert.Equal(t, 1, updated.LongestStreak)
	// Amendment never re-advances the cursor.
	assert.Equal(t, 2, updated.CurrentDay)
}

func TestCompleteDayAmendCompleteToMiss(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_downgrade")
	challengeID := createTestTemplate(t, 3, 21)

	progress, err := svc.Start(ctx, "clerk_downgrade", challengeID)
	require.NoError(t, err)

	completeDay(t, svc, "clerk_downgrade", progress.ID, 1, 3, 3)

	amended := completeDay(t, svc, "clerk_downgrade", progress.ID, 1, 1, 3)
	assert.False(t, amended.IsCompleted)
	assert.Equal(t, 0, amended.NewStreak)

	updated, err := svc.GetProgress(ctx, "clerk_downgrade", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.TotalCompletedDays)
	assert.Equal(t, 1, updated.MissedDays)
	assert.Equal(t, 0, updated.CurrentStreak)
	// Longest streak never decreases.
	assert.Equal(t, 1, updated.LongestStreak)
}

func TestCompleteDayAmendAfterMidnightKeepsDate(t *testing.T) {
	defer clearDatabase(t)
	logs := NewDailyLogService(testPool)
	svc := NewProgressService(testPool, logs, testClock)
	ctx := context.Background()

	createTestUser(t, "clerk_midnight")
	challengeID := createTestTemplate(t, 3, 21)

	progress, err := svc.Start(ctx, "clerk_midnight", challengeID)
	require.NoError(t, err)

	completeDay(t, svc, "clerk_midnight", progress.ID, 1, 3, 3)

	// The same engine, one day later.
	tomorrowClock, err := timeutil.NewClockAt("UTC", time.Now().AddDate(0, 0, 1))
	require.NoError(t, err)
	tomorrowSvc := NewProgressService(testPool, logs, tomorrowClock)

	_, err = tomorrowSvc.CompleteDay(ctx, "clerk_midnight", progress.ID, 1, 4, 3, nil, nil)
	require.NoError(t, err)

	var completionDate time.Time
	err = testPool.QueryRow(ctx,
		`SELECT completion_date FROM daily_logs WHERE progress_id = $1 AND day_number = 1`,
		progress.ID).Scan(&completionDate)
	require.NoError(t, err)
	assert.True(t, completionDate.Equal(testClock.Today()))

	// The sweep judging that date still sees the completed log and must
	// not invent a miss for it.
	recon := NewReconciliationService(testPool, tomorrowClock, NewDeviceService(testPool))
	report, err := recon.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.MissedCount)
}

func TestCompleteDayRejectsWrongDay(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_wrongday")
	challengeID := createTestTemplate(t, 1, 21)

	progress, err := svc.Start(ctx, "clerk_wrongday", challengeID)
	require.NoError(t, err)

	_, err = svc.CompleteDay(ctx, "clerk_wrongday", progress.ID, 5, 1, 1, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.CompleteDay(ctx, "clerk_wrongday", progress.ID, 0, 1, 1, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCompleteDayChallengeCompletion(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_finish")
	challengeID := createTestTemplate(t, 1, 3)

	progress, err := svc.Start(ctx, "clerk_finish", challengeID)
	require.NoError(t, err)

	assert.False(t, completeDay(t, svc, "clerk_finish", progress.ID, 1, 1, 1).IsChallengeCompleted)
	assert.False(t, completeDay(t, svc, "clerk_finish", progress.ID, 2, 1, 1).IsChallengeCompleted)

	final := completeDay(t, svc, "clerk_finish", progress.ID, 3, 1, 1)
	assert.True(t, final.IsChallengeCompleted)

	updated, err := svc.GetProgress(ctx, "clerk_finish", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
	assert.GreaterOrEqual(t, updated.TotalCompletedDays, 3)

	// Terminal state: no further day completions.
	_, err = svc.CompleteDay(ctx, "clerk_finish", progress.ID, 4, 1, 1, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestMissedDayDefersCompletion(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_scenario")
	challengeID := createTestTemplate(t, 1, 3)

	progress, err := svc.Start(ctx, "clerk_scenario", challengeID)
	require.NoError(t, err)

	day1 := completeDay(t, svc, "clerk_scenario", progress.ID, 1, 1, 1)
	assert.Equal(t, 1, day1.NewStreak)

	day2 := completeDay(t, svc, "clerk_scenario", progress.ID, 2, 0, 1)
	assert.Equal(t, 0, day2.NewStreak)

	// Calendar window exhausted but only two successes logged: the
	// challenge stays active past its nominal duration.
	day3 := completeDay(t, svc, "clerk_scenario", progress.ID, 3, 1, 1)
	assert.False(t, day3.IsChallengeCompleted)

	mid, err := svc.GetProgress(ctx, "clerk_scenario", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, mid.Status)
	assert.Equal(t, 2, mid.TotalCompletedDays)
	assert.Equal(t, 1, mid.MissedDays)
	assert.Equal(t, 4, mid.CurrentDay)

	// The third success, whenever it lands, completes the challenge.
	day4 := completeDay(t, svc, "clerk_scenario", progress.ID, 4, 1, 1)
	assert.True(t, day4.IsChallengeCompleted)
}

func TestRestart(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_restart")
	challengeID := createTestTemplate(t, 2, 21)

	progress, err := svc.Start(ctx, "clerk_restart", challengeID)
	require.NoError(t, err)

	completeDay(t, svc, "clerk_restart", progress.ID, 1, 2, 2)
	completeDay(t, svc, "clerk_restart", progress.ID, 2, 0, 2)
	completeDay(t, svc, "clerk_restart", progress.ID, 3, 2, 2)

	restarted, err := svc.Restart(ctx, "clerk_restart", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, restarted.CurrentDay)
	assert.Equal(t, challenge.StatusActive, restarted.Status)
	assert.Equal(t, 0, restarted.CurrentStreak)
	assert.Equal(t, 0, restarted.LongestStreak)
	assert.Equal(t, 0, restarted.TotalCompletedDays)
	assert.Equal(t, 0, restarted.MissedDays)
	assert.Nil(t, restarted.LastCompletedAt)
	assert.Nil(t, restarted.CompletedAt)

	var logCount int
	err = testPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM daily_logs WHERE progress_id = $1`, progress.ID).Scan(&logCount)
	require.NoError(t, err)
	assert.Equal(t, 0, logCount)

	// Day one behaves exactly like a fresh start.
	result := completeDay(t, svc, "clerk_restart", progress.ID, 1, 2, 2)
	assert.Equal(t, 1, result.NewStreak)
}

func TestPauseAndResume(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_pause")
	challengeID := createTestTemplate(t, 1, 7)

	progress, err := svc.Start(ctx, "clerk_pause", challengeID)
	require.NoError(t, err)

	paused, err := svc.Pause(ctx, "clerk_pause", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusPaused, paused.Status)
	assert.NotNil(t, paused.PausedAt)

	_, err = svc.CompleteDay(ctx, "clerk_pause", progress.ID, 1, 1, 1, nil, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Pause(ctx, "clerk_pause", progress.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	resumed, err := svc.Resume(ctx, "clerk_pause", progress.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)

	result := completeDay(t, svc, "clerk_pause", progress.ID, 1, 1, 1)
	assert.True(t, result.IsCompleted)
}

func TestGetProgressOwnership(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_owner")
	createTestUser(t, "clerk_other")
	challengeID := createTestTemplate(t, 1, 7)

	progress, err := svc.Start(ctx, "clerk_owner", challengeID)
	require.NoError(t, err)

	_, err = svc.GetProgress(ctx, "clerk_other", progress.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetCalendar(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_cal")
	challengeID := createTestTemplate(t, 1, 21)

	progress, err := svc.Start(ctx, "clerk_cal", challengeID)
	require.NoError(t, err)

	completeDay(t, svc, "clerk_cal", progress.ID, 1, 1, 1)

	today := testClock.Today()
	cal, err := svc.GetCalendar(ctx, "clerk_cal", progress.ID, today.Year(), today.Month())
	require.NoError(t, err)

	assert.Equal(t, today.Year(), cal.Year)
	assert.Equal(t, int(today.Month()), cal.Month)

	daysInMonth := today.AddDate(0, 1, -today.Day()).Day()
	require.Len(t, cal.Days, daysInMonth)

	var todayEntry *dailylog.CalendarDay
	for _, d := range cal.Days {
		if d.IsToday {
			todayEntry = d
		}
	}
	require.NotNil(t, todayEntry)
	assert.True(t, todayEntry.Logged)
	assert.True(t, todayEntry.Completed)
	assert.Equal(t, 1, todayEntry.DayNumber)
}

func TestTemplateStatsDerived(t *testing.T) {
	defer clearDatabase(t)
	svc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_stats_a")
	createTestUser(t, "clerk_stats_b")
	challengeID := createTestTemplate(t, 1, 1)

	pa, err := svc.Start(ctx, "clerk_stats_a", challengeID)
	require.NoError(t, err)
	_, err = svc.Start(ctx, "clerk_stats_b", challengeID)
	require.NoError(t, err)

	completeDay(t, svc, "clerk_stats_a", pa.ID, 1, 1, 1)

	stats, err := svc.GetTemplateStats(ctx, challengeID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalParticipants)
	assert.Equal(t, 1, stats.TotalCompletions)
}
