package upstream

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// MockClient provides deterministic local replies when no upstream is available.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(messages), nil
}

func buildMockReply(messages []Message) string {
	var last string
	turns := 0
	for _, m := range messages {
		if m.Role != openai.ChatMessageRoleUser {
			continue
		}
		last = strings.TrimSpace(m.Content)
		turns++
	}
	if last == "" {
		return "I am listening."
	}
	if turns == 1 {
		return fmt.Sprintf("I heard you: %s", last)
	}
	return fmt.Sprintf("I heard you: %s\n(%d messages so far)", last, turns)
}
