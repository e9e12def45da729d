package transport

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/avvvet/watssabi-intake/internal/prompts"
)

// Processor is the conversation entrypoint the inbound boundaries call.
type Processor interface {
	Process(ctx context.Context, userID, message string) (string, error)
}

// HTTPServer exposes the Twilio webhook and a health endpoint.
type HTTPServer struct {
	server    *http.Server
	processor Processor
	validator *SignatureValidator
	log       zerolog.Logger
}

// twiml is the reply envelope Twilio renders back to the sender.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func NewHTTPServer(addr string, processor Processor, validator *SignatureValidator, log zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		processor: processor,
		validator: validator,
		log:       log.With().Str("component", "http").Logger(),
	}

	router := chi.NewRouter()
	router.Get("/health", s.handleHealth)
	router.Post("/webhook/twilio", s.handleTwilioWebhook)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleTwilioWebhook receives a message event, runs the conversation turn,
// and answers with a TwiML envelope. A failed turn still answers 200 with
// the fixed fallback message so the sender is never left without a reply.
func (s *HTTPServer) handleTwilioWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		http.Error(w, "missing X-Twilio-Signature header", http.StatusBadRequest)
		return
	}
	if !s.validator.Validate(r, signature) {
		s.log.Warn().Msg("rejected webhook with invalid signature")
		http.Error(w, "invalid Twilio signature", http.StatusForbidden)
		return
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		http.Error(w, "From and Body are required", http.StatusUnprocessableEntity)
		return
	}

	reply, err := s.processor.Process(r.Context(), from, body)
	if err != nil {
		s.log.Warn().Err(err).Str("from", from).Msg("sending fallback reply")
		reply = prompts.FallbackReply
	}

	s.writeTwiML(w, reply)
}

func (s *HTTPServer) writeTwiML(w http.ResponseWriter, message string) {
	body, err := xml.Marshal(twiml{Message: message})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to render TwiML")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}
