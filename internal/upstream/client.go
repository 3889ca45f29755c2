package upstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultTimeout = 30 * time.Second

	Temperature float32 = 0.7
	MaxTokens           = 800
	TopP        float32 = 1
)

// Message is one entry of the ordered sequence sent upstream.
type Message struct {
	Role    string
	Content string
}

// Completer produces the assistant reply for a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func New(cfg Config) (Completer, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "http"
	}

	switch mode {
	case "http":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, errors.New("upstream base url is required for http mode")
		}
		return NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported upstream mode %q", cfg.Mode)
	}
}

// StatusError is returned when the upstream answers with a non-2xx status.
// Body holds the raw response text for operator logs only.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream http status %d", e.StatusCode)
}

// ErrMalformedResponse means a 2xx response did not carry choices[0].message.
var ErrMalformedResponse = errors.New("malformed upstream response")
