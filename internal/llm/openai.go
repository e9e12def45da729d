package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avvvet/watssabi-intake/internal/models"
)

// OpenAIProvider implements Provider on top of the OpenAI chat completion
// API.
type OpenAIProvider struct {
	model llms.Model
	log   zerolog.Logger
}

func NewOpenAIProvider(apiKey, model string, timeout time.Duration, log zerolog.Logger) (*OpenAIProvider, error) {
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
		openai.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	return &OpenAIProvider{
		model: client,
		log:   log.With().Str("component", "llm").Logger(),
	}, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, directive string, history models.History) (string, error) {
	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, directive))

	for _, msg := range history {
		switch msg.Role {
		case models.RoleAssistant:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, msg.Content))
		case models.RoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		default:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		}
	}

	resp, err := p.model.GenerateContent(ctx, messages)
	if err != nil {
		p.log.Error().Err(err).Msg("completion request failed")
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		p.log.Error().Msg("completion response was empty")
		return "", fmt.Errorf("completion response was empty")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}
