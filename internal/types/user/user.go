package user

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	ClerkID   string    `json:"clerk_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type SyncUserRequest struct {
	Username string `json:"username"`
}
