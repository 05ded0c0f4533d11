package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"deenStreakAPI/internal/apperr"
)

// resolveUserID maps the Clerk subject to the internal user UUID. Users are
// provisioned by the auth collaborator; a missing row means the caller is
// not a known user.
func resolveUserID(ctx context.Context, q querier, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("user not found: %w", apperr.ErrValidation)
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}
