package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/avvvet/watssabi-intake/internal/prompts"
)

// IntakeRequest is the request internal callers publish on the intake
// subject.
type IntakeRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// IntakeResponse is the reply sent back on the request's reply subject.
// Failed carries the fallback reply so callers can relay it verbatim.
type IntakeResponse struct {
	UserID string `json:"user_id"`
	Reply  string `json:"reply"`
	Failed bool   `json:"failed,omitempty"`
}

// NATSTransport drives the orchestrator over NATS request/reply, so
// internal tooling can run intake turns without going through Twilio.
type NATSTransport struct {
	conn      *nats.Conn
	subject   string
	timeout   time.Duration
	processor Processor
	log       zerolog.Logger
}

func NewNATSTransport(url, subject, name string, timeout time.Duration, processor Processor, log zerolog.Logger) (*NATSTransport, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(timeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSTransport{
		conn:      conn,
		subject:   subject,
		timeout:   timeout,
		processor: processor,
		log:       log.With().Str("component", "nats").Logger(),
	}, nil
}

func (nt *NATSTransport) Start() error {
	_, err := nt.conn.Subscribe(nt.subject, nt.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.subject, err)
	}

	nt.log.Info().Str("subject", nt.subject).Msg("subscribed")
	return nil
}

func (nt *NATSTransport) handleMessage(msg *nats.Msg) {
	response := nt.respondTo(msg.Data)

	data, err := json.Marshal(response)
	if err != nil {
		nt.log.Error().Err(err).Msg("failed to marshal response")
		return
	}

	if err := msg.Respond(data); err != nil {
		nt.log.Error().Err(err).Msg("failed to send response")
	}
}

func (nt *NATSTransport) respondTo(data []byte) IntakeResponse {
	var request IntakeRequest
	if err := json.Unmarshal(data, &request); err != nil {
		nt.log.Error().Err(err).Msg("error parsing request")
		return IntakeResponse{Reply: prompts.FallbackReply, Failed: true}
	}

	ctx, cancel := context.WithTimeout(context.Background(), nt.timeout)
	defer cancel()

	reply, err := nt.processor.Process(ctx, request.UserID, request.Message)
	if err != nil {
		nt.log.Warn().Err(err).Str("user_id", request.UserID).Msg("sending fallback reply")
		return IntakeResponse{UserID: request.UserID, Reply: prompts.FallbackReply, Failed: true}
	}

	return IntakeResponse{UserID: request.UserID, Reply: reply}
}

func (nt *NATSTransport) Close() error {
	if nt.conn != nil {
		nt.conn.Close()
		nt.log.Info().Msg("NATS connection closed")
	}
	return nil
}
