package conversation

import (
	"encoding/json"
	"strings"

	"github.com/avvvet/watssabi-intake/internal/prompts"
)

// Outcome is the classification of one raw model response. The branches
// are total: every response is either ongoing or completed, and transport
// failures never reach classification.
type Outcome struct {
	Completed bool
	Raw       string         // trimmed model text; final assistant turn on completion
	Reply     string         // user-facing reply for a completed intake
	Fields    map[string]any // collected data, nil or empty when none was extractable
}

// Classify decides whether raw model text ends the intake. Only a response
// whose whole trimmed body is a JSON object counts as completion; anything
// else, JSON-ish or not, keeps the conversation going. The directive tells
// the model to emit bare JSON only at the end, so prose wrapped around JSON
// is deliberately an ongoing turn.
func Classify(raw string) Outcome {
	trimmed := strings.TrimSpace(raw)

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || payload == nil {
		return Outcome{Raw: trimmed}
	}

	out := Outcome{
		Completed: true,
		Raw:       trimmed,
		Reply:     prompts.CompletionThanks,
	}

	// A missing, empty, or non-string reply falls back to the fixed
	// thank-you line instead of failing the turn.
	if rawReply, ok := payload["reply"]; ok {
		var reply string
		if err := json.Unmarshal(rawReply, &reply); err == nil && strings.TrimSpace(reply) != "" {
			out.Reply = reply
		}
	}

	// An absent or empty data object still completes the conversation;
	// only the collected-data write is skipped.
	if rawData, ok := payload["data"]; ok {
		var fields map[string]any
		if err := json.Unmarshal(rawData, &fields); err == nil && len(fields) > 0 {
			out.Fields = fields
		}
	}

	return out
}
