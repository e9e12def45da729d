package models

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single role-tagged turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the ordered transcript of one user's conversation. It is
// replaced wholesale in the session store between turns.
type History []Message
