package session

import (
	"context"
	"time"

	"github.com/avvvet/watssabi-intake/internal/models"
)

// Store keeps per-user conversation history with a fixed expiry.
// This allows us to swap between Redis, in-memory, etc.
type Store interface {
	// Load returns the stored history for the user, or nil when no
	// session exists.
	Load(ctx context.Context, userID string) (models.History, error)

	// Save replaces the user's history and resets the expiry.
	Save(ctx context.Context, userID string, history models.History, ttl time.Duration) error

	// Delete removes the user's session. Deleting an absent session is
	// a no-op.
	Delete(ctx context.Context, userID string) error
}
