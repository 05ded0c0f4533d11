package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deenStreakAPI/internal/apperr"
)

func TestEnsureUser(t *testing.T) {
	defer clearDatabase(t)
	svc := NewUserService(testPool)
	ctx := context.Background()

	created, err := svc.EnsureUser(ctx, "clerk_sync", "fatima")
	require.NoError(t, err)
	assert.Equal(t, "clerk_sync", created.ClerkID)
	assert.Equal(t, "fatima", created.Username)

	// Replay keeps the same row and refreshes the username.
	updated, err := svc.EnsureUser(ctx, "clerk_sync", "fatima_z")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "fatima_z", updated.Username)

	// Empty username does not erase the stored one.
	kept, err := svc.EnsureUser(ctx, "clerk_sync", "")
	require.NoError(t, err)
	assert.Equal(t, "fatima_z", kept.Username)
}

func TestGetByClerkID(t *testing.T) {
	defer clearDatabase(t)
	svc := NewUserService(testPool)
	ctx := context.Background()

	_, err := svc.EnsureUser(ctx, "clerk_me", "yusuf")
	require.NoError(t, err)

	u, err := svc.GetByClerkID(ctx, "clerk_me")
	require.NoError(t, err)
	assert.Equal(t, "yusuf", u.Username)

	_, err = svc.GetByClerkID(ctx, "clerk_nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
