package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/avvvet/watssabi-intake/internal/models"
)

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore creates a new Redis-backed store and verifies the
// connection.
func NewRedisStore(redisURL string, log zerolog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		log:    log.With().Str("component", "session").Logger(),
	}, nil
}

// sessionKey generates the Redis key for a user's session.
func sessionKey(userID string) string {
	return fmt.Sprintf("session:%s", userID)
}

// Load retrieves a user's conversation history. An absent key yields a nil
// history and no error.
func (r *RedisStore) Load(ctx context.Context, userID string) (models.History, error) {
	data, err := r.client.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("session load failed")
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	history, err := decodeHistory([]byte(data))
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("session data corrupted")
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}

	return history, nil
}

// Save replaces the user's history and refreshes the TTL.
func (r *RedisStore) Save(ctx context.Context, userID string, history models.History, ttl time.Duration) error {
	data, err := encodeHistory(history)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("session encode failed")
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(userID), data, ttl).Err(); err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("session save failed")
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes the user's session. Redis DEL on an absent key is already
// a no-op.
func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("session delete failed")
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Ping verifies the Redis connection is alive.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func encodeHistory(history models.History) ([]byte, error) {
	if history == nil {
		history = models.History{}
	}
	return json.Marshal(history)
}

func decodeHistory(data []byte) (models.History, error) {
	var history models.History
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}
