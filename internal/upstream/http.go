package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
)

const maxErrorBody = 4 << 10

// completionRequest mirrors openai.ChatCompletionRequest but always sends
// temperature, top_p and stream, which the library type omits when zero.
type completionRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	Temperature float32      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens"`
	TopP        float32      `json:"top_p"`
	Stream      bool         `json:"stream"`
}

// apiMessage always carries content, even when empty; the library message
// type drops it and providers reject such entries.
type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionResponse decodes only what the proxy relies on. Pointers tell a
// missing message or content apart from an empty one.
type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		FinishReason openai.FinishReason `json:"finish_reason"`
		Message      *struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage openai.Usage `json:"usage"`
}

// HTTPClient calls an OpenAI-compatible chat/completions endpoint.
type HTTPClient struct {
	client *resty.Client
	apiKey string
	model  string
}

func NewHTTPClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(baseURL), "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		client: client,
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
	}
}

func (c *HTTPClient) Model() string { return c.model }

func (c *HTTPClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body := completionRequest{
		Model:       c.model,
		Messages:    toAPIMessages(messages),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		TopP:        TopP,
		Stream:      false,
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}

	if !res.IsSuccess() {
		raw := res.Body()
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return "", &StatusError{StatusCode: res.StatusCode(), Body: string(raw)}
	}

	var out completionResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	msg := out.Choices[0].Message
	if msg == nil {
		return "", fmt.Errorf("%w: first choice has no message", ErrMalformedResponse)
	}
	if msg.Content == nil {
		return "", fmt.Errorf("%w: first choice message has no content", ErrMalformedResponse)
	}
	return *msg.Content, nil
}

func toAPIMessages(msgs []Message) []apiMessage {
	out := make([]apiMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, apiMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
