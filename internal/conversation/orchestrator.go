package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/avvvet/watssabi-intake/internal/llm"
	"github.com/avvvet/watssabi-intake/internal/models"
	"github.com/avvvet/watssabi-intake/internal/prompts"
	"github.com/avvvet/watssabi-intake/internal/session"
	"github.com/avvvet/watssabi-intake/internal/storage"
)

// ErrNoCompletion signals that the model produced no usable response for
// this turn. Nothing was stored; the caller answers with a fallback and the
// user's next message simply retries.
var ErrNoCompletion = errors.New("no completion available")

// Orchestrator drives one conversation turn: load the session, generate a
// completion, then either save the session (ongoing) or persist and clear
// it (completed). It holds no state between turns; everything lives in the
// injected collaborators.
//
// At most one in-flight turn per user id is assumed. The orchestrator does
// not lock per user, so the delivery layer has to serialize messages from
// the same sender or a racing turn can lose a session update.
type Orchestrator struct {
	sessions  session.Store
	provider  llm.Provider
	repo      storage.Repository
	directive string
	ttl       time.Duration
	log       zerolog.Logger
}

func NewOrchestrator(sessions session.Store, provider llm.Provider, repo storage.Repository, ttl time.Duration, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		provider:  provider,
		repo:      repo,
		directive: prompts.IntakeDirective,
		ttl:       ttl,
		log:       log.With().Str("component", "conversation").Logger(),
	}
}

// Process handles one inbound message and returns the reply for the user.
// A failed model call returns ErrNoCompletion with no store mutated; a
// failed persistence returns the underlying error with the session kept in
// place so the completion is retried on the next message.
func (o *Orchestrator) Process(ctx context.Context, userID, message string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}
	if message == "" {
		return "", fmt.Errorf("message is required")
	}

	logger := o.log.With().Str("user_id", userID).Logger()

	history, err := o.sessions.Load(ctx, userID)
	if err != nil {
		// Fail open: a broken session read starts a fresh conversation
		// instead of blocking the user. The adapter already logged the
		// fault.
		history = nil
	}

	history = append(history, models.Message{Role: models.RoleUser, Content: message})

	raw, err := o.provider.Generate(ctx, o.directive, history)
	if err != nil {
		logger.Error().Err(err).Msg("no response from model")
		return "", ErrNoCompletion
	}

	outcome := Classify(raw)
	if outcome.Completed {
		return o.complete(ctx, logger, userID, history, outcome)
	}

	// Outcome.Raw is the trimmed text, so the transcript stays clean
	// regardless of the provider implementation.
	history = append(history, models.Message{Role: models.RoleAssistant, Content: outcome.Raw})
	if err := o.sessions.Save(ctx, userID, history, o.ttl); err != nil {
		// Session persistence is best-effort; the turn still succeeds.
		logger.Warn().Err(err).Msg("session save failed")
	}

	logger.Info().Int("messages", len(history)).Msg("conversation ongoing")
	return outcome.Raw, nil
}

// complete freezes the transcript, persists user, conversation, and
// collected data in one transaction, and clears the session.
func (o *Orchestrator) complete(ctx context.Context, logger zerolog.Logger, userID string, history models.History, outcome Outcome) (string, error) {
	// The literal completion payload becomes the final assistant turn of
	// the durable transcript.
	history = append(history, models.Message{Role: models.RoleAssistant, Content: outcome.Raw})

	err := o.repo.Transact(ctx, func(repo storage.Repository) error {
		user, err := repo.GetOrCreateUser(ctx, userID)
		if err != nil {
			return err
		}

		conv, err := repo.CreateConversation(ctx, user, storage.StatusCompleted, history)
		if err != nil {
			return err
		}

		if len(outcome.Fields) > 0 {
			if _, err := repo.CreateCollectedData(ctx, user, conv, outcome.Fields); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The session deliberately survives so the user's next message
		// re-attempts the completion instead of losing the answers.
		logger.Error().Err(err).Msg("persisting completed conversation failed")
		return "", fmt.Errorf("persist completed conversation: %w", err)
	}

	if err := o.sessions.Delete(ctx, userID); err != nil {
		logger.Warn().Err(err).Msg("session delete failed, entry will expire")
	}

	logger.Info().Int("messages", len(history)).Msg("conversation completed")
	return outcome.Reply, nil
}
