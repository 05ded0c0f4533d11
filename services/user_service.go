package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deenStreakAPI/internal/apperr"
	"deenStreakAPI/internal/types/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

// EnsureUser provisions the row for a Clerk subject on first sign-in.
// Calling it again refreshes the username and returns the existing row.
func (s *UserService) EnsureUser(ctx context.Context, clerkID, username string) (*user.User, error) {
	query := `
	INSERT INTO users (clerk_id, username)
	VALUES ($1, $2)
	ON CONFLICT (clerk_id)
	DO UPDATE SET username = CASE WHEN $2 <> '' THEN $2 ELSE users.username END
	RETURNING id, clerk_id, username, created_at`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, clerkID, username).Scan(
		&u.ID, &u.ClerkID, &u.Username, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sync user %s: %w", clerkID, err)
	}

	return u, nil
}

func (s *UserService) GetByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	u := &user.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, clerk_id, username, created_at FROM users WHERE clerk_id = $1`, clerkID).Scan(
		&u.ID, &u.ClerkID, &u.Username, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load user %s: %w", clerkID, err)
	}

	return u, nil
}
