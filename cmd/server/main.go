package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avvvet/watssabi-intake/internal/config"
	"github.com/avvvet/watssabi-intake/internal/conversation"
	"github.com/avvvet/watssabi-intake/internal/llm"
	"github.com/avvvet/watssabi-intake/internal/logging"
	"github.com/avvvet/watssabi-intake/internal/session"
	"github.com/avvvet/watssabi-intake/internal/storage"
	"github.com/avvvet/watssabi-intake/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	logger := logging.New(cfg.ServiceName, cfg.LogLevel)

	// Validate required configuration
	if cfg.OpenAIAPIKey == "" {
		logger.Fatal().Msg("OPENAI_API_KEY environment variable is required")
	}
	if cfg.TwilioAuthToken == "" {
		logger.Fatal().Msg("TWILIO_AUTH_TOKEN environment variable is required")
	}

	// Initialize session store
	sessions, err := session.NewRedisStore(cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	logger.Info().Str("url", cfg.RedisURL).Msg("Redis connected")

	// Initialize durable storage
	db, err := storage.Connect(storage.Config{
		DSN:             cfg.DatabaseDSN,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}
	repo := storage.NewGormRepository(db)
	logger.Info().Msg("PostgreSQL connected")

	// Initialize completion provider
	provider, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize OpenAI provider")
	}
	logger.Info().Str("model", cfg.OpenAIModel).Msg("OpenAI provider initialized")

	// Initialize the orchestrator with its collaborators
	orchestrator := conversation.NewOrchestrator(sessions, provider, repo, cfg.SessionTTL, logger)

	// Initialize inbound boundaries
	validator := transport.NewSignatureValidator(cfg.TwilioAuthToken)
	httpServer := transport.NewHTTPServer(cfg.HTTPAddr, orchestrator, validator, logger)

	natsTransport, err := transport.NewNATSTransport(cfg.NatsURL, cfg.NatsSubject, cfg.ServiceName, cfg.NatsTimeout, orchestrator, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize NATS transport")
	}

	if err := natsTransport.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start NATS transport")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("subject", cfg.NatsSubject).
		Msg("watssabi intake relay is running")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("error during HTTP shutdown")
	}
	if err := natsTransport.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing NATS transport")
	}
	if err := sessions.Close(); err != nil {
		logger.Warn().Err(err).Msg("error closing session store")
	}

	logger.Info().Msg("watssabi intake relay stopped")
}
