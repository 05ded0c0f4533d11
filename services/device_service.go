package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"deenStreakAPI/internal/types/device"
)

type DeviceService struct {
	db *pgxpool.Pool
}

func NewDeviceService(db *pgxpool.Pool) *DeviceService {
	return &DeviceService{db: db}
}

// RegisterDevice upserts a push token. A token re-registered by another
// account moves to that account.
func (s *DeviceService) RegisterDevice(ctx context.Context, clerkID, token, platform string) (*device.Token, error) {
	userID, err := resolveUserID(ctx, s.db, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO user_devices (user_id, token, platform)
	VALUES ($1, $2, $3)
	ON CONFLICT (token)
	DO UPDATE SET user_id = $1, platform = $3
	RETURNING id, user_id, token, platform, created_at`

	d := &device.Token{}
	err = s.db.QueryRow(ctx, query, userID, token, platform).Scan(
		&d.ID, &d.UserID, &d.Token, &d.Platform, &d.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register device for user %s: %w", userID, err)
	}

	return d, nil
}

// TokensForUser returns every registered push target for a user.
func (s *DeviceService) TokensForUser(ctx context.Context, userID uuid.UUID) ([]*device.Token, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, token, platform, created_at FROM user_devices WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load devices for user %s: %w", userID, err)
	}
	defer rows.Close()

	var tokens []*device.Token
	for rows.Next() {
		d := &device.Token{}
		if err := rows.Scan(&d.ID, &d.UserID, &d.Token, &d.Platform, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device row: %w", err)
		}
		tokens = append(tokens, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device rows: %w", err)
	}

	return tokens, nil
}
