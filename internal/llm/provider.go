package llm

import (
	"context"

	"github.com/avvvet/watssabi-intake/internal/models"
)

// Provider defines the interface for completion backends.
type Provider interface {
	// Generate returns the model's raw reply to the directive plus the
	// ordered history. Implementations must not mutate history.
	Generate(ctx context.Context, directive string, history models.History) (string, error)
}
