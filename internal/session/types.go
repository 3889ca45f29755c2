package session

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered message history. The first entry is the
// system prompt the session was created with.
type Conversation []Message

// SystemPrompt returns the leading system message content, if any.
func (c Conversation) SystemPrompt() string {
	if len(c) == 0 || c[0].Role != RoleSystem {
		return ""
	}
	return c[0].Content
}

func (c Conversation) clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}
