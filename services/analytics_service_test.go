package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deenStreakAPI/internal/apperr"
)

func newAnalyticsService() *AnalyticsService {
	// Nil cache: the redis layer is optional and disabled in tests.
	return NewAnalyticsService(testPool, testClock, nil)
}

func insertMissedRecord(t *testing.T, userID, challengeID uuid.UUID, daysAgo int) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `
		INSERT INTO missed_challenge_records (user_id, challenge_id, missed_date, reason, was_active)
		VALUES ($1, $2, $3, 'not_completed', TRUE)`,
		userID, challengeID, testClock.Today().AddDate(0, 0, -daysAgo))
	require.NoError(t, err)
}

func TestGetMissedSummaryWindow(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()
	ctx := context.Background()

	userID := createTestUser(t, "clerk_an_window")
	challengeID := createTestTemplate(t, 1, 21)

	// Boundaries: a miss exactly windowDays ago is the oldest judgeable
	// date and still counts; one day older falls out.
	insertMissedRecord(t, userID, challengeID, 1)
	insertMissedRecord(t, userID, challengeID, 7)
	insertMissedRecord(t, userID, challengeID, 8)
	insertMissedRecord(t, userID, challengeID, 30)
	insertMissedRecord(t, userID, challengeID, 31)

	weekly, err := svc.GetMissedSummary(ctx, "clerk_an_window", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, weekly.WindowDays)
	assert.Equal(t, 2, weekly.MissedCount)

	monthly, err := svc.GetMissedSummary(ctx, "clerk_an_window", 30)
	require.NoError(t, err)
	assert.Equal(t, 4, monthly.MissedCount)
}

func TestGetMissedSummaryMostMissed(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()
	ctx := context.Background()

	userID := createTestUser(t, "clerk_an_most")
	frequent := createTestTemplate(t, 1, 21)
	occasional := createTestTemplate(t, 1, 21)

	insertMissedRecord(t, userID, frequent, 1)
	insertMissedRecord(t, userID, frequent, 2)
	insertMissedRecord(t, userID, occasional, 3)

	summary, err := svc.GetMissedSummary(ctx, "clerk_an_most", 7)
	require.NoError(t, err)
	require.NotNil(t, summary.MostMissed)
	assert.Equal(t, frequent, summary.MostMissed.ChallengeID)
	assert.Equal(t, 2, summary.MostMissed.MissCount)
}

func TestGetMissedSummaryEmpty(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()

	createTestUser(t, "clerk_an_empty")

	summary, err := svc.GetMissedSummary(context.Background(), "clerk_an_empty", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.MissedCount)
	assert.Nil(t, summary.MostMissed)
}

func TestGetMissedSummaryRejectsBadWindow(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()

	createTestUser(t, "clerk_an_bad")

	for _, window := range []int{0, 1, 14, 365} {
		_, err := svc.GetMissedSummary(context.Background(), "clerk_an_bad", window)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestGetMissedSummaryScopedToUser(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()
	ctx := context.Background()

	userID := createTestUser(t, "clerk_an_mine")
	otherID := createTestUser(t, "clerk_an_theirs")
	challengeID := createTestTemplate(t, 1, 21)

	insertMissedRecord(t, userID, challengeID, 1)
	insertMissedRecord(t, otherID, challengeID, 1)
	insertMissedRecord(t, otherID, challengeID, 2)

	summary, err := svc.GetMissedSummary(ctx, "clerk_an_mine", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MissedCount)
}

func TestGetCompletionCounts(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()
	logs := NewDailyLogService(testPool)
	progressSvc := newProgressService()
	ctx := context.Background()

	createTestUser(t, "clerk_an_counts")
	challengeID := createTestTemplate(t, 1, 60)

	progress, err := progressSvc.Start(ctx, "clerk_an_counts", challengeID)
	require.NoError(t, err)

	// Two completions inside the week, one older than a week but inside the
	// month, one under target that never counts.
	_, err = logs.UpsertLog(ctx, progress.ID, 1, 1, 1, testClock.Today().AddDate(0, 0, -20), nil, nil)
	require.NoError(t, err)
	_, err = logs.UpsertLog(ctx, progress.ID, 2, 1, 1, testClock.Today().AddDate(0, 0, -3), nil, nil)
	require.NoError(t, err)
	_, err = logs.UpsertLog(ctx, progress.ID, 3, 1, 1, testClock.Today(), nil, nil)
	require.NoError(t, err)
	_, err = logs.UpsertLog(ctx, progress.ID, 4, 0, 1, testClock.Today().AddDate(0, 0, -2), nil, nil)
	require.NoError(t, err)

	counts, err := svc.GetCompletionCounts(ctx, "clerk_an_counts")
	require.NoError(t, err)
	assert.Equal(t, 2, counts["completed_last_7_days"])
	assert.Equal(t, 3, counts["completed_last_30_days"])
}

func TestAnalyticsUnknownUser(t *testing.T) {
	defer clearDatabase(t)
	svc := newAnalyticsService()

	_, err := svc.GetMissedSummary(context.Background(), "clerk_an_ghost", 7)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.GetCompletionCounts(context.Background(), "clerk_an_ghost")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
