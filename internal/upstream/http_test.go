package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPClientSendsCompletionRequest(t *testing.T) {
	var (
		gotAuth string
		gotPath string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Black holes are..."}}]}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/openai/v1/", "test-key", "", time.Second)
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "Tell me about black holes"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "Black holes are..." {
		t.Fatalf("reply = %q, want %q", reply, "Black holes are...")
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotPath != "/openai/v1/chat/completions" {
		t.Fatalf("path = %q, want %q", gotPath, "/openai/v1/chat/completions")
	}
	if gotBody["model"] != DefaultModel {
		t.Fatalf("model = %v, want %v", gotBody["model"], DefaultModel)
	}
	if gotBody["temperature"] != 0.7 {
		t.Fatalf("temperature = %v, want 0.7", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != float64(800) {
		t.Fatalf("max_tokens = %v, want 800", gotBody["max_tokens"])
	}
	if gotBody["top_p"] != float64(1) {
		t.Fatalf("top_p = %v, want 1", gotBody["top_p"])
	}
	if stream, ok := gotBody["stream"].(bool); !ok || stream {
		t.Fatalf("stream = %v, want explicit false", gotBody["stream"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "sys" {
		t.Fatalf("messages[0] = %v, want system/sys", first)
	}
}

func TestHTTPClientNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid API Key"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", time.Second)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Complete() error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("StatusCode = %d, want %d", se.StatusCode, http.StatusUnauthorized)
	}
	if !strings.Contains(se.Body, "Invalid API Key") {
		t.Fatalf("Body = %q, want upstream error text", se.Body)
	}
	if strings.Contains(se.Error(), "Invalid API Key") {
		t.Fatalf("Error() leaks upstream body: %q", se.Error())
	}
}

func TestHTTPClientMalformedResponse(t *testing.T) {
	for name, body := range map[string]string{
		"not_json":        `<html>oops</html>`,
		"no_choices":      `{"choices":[]}`,
		"wrong_type":      `{"choices":"nope"}`,
		"empty_choice":    `{"choices":[{}]}`,
		"null_message":    `{"choices":[{"message":null}]}`,
		"missing_content": `{"choices":[{"message":{"role":"assistant"}}]}`,
		"null_content":    `{"choices":[{"message":{"role":"assistant","content":null}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "k", "", time.Second)
			_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("Complete() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestHTTPClientEmptyContentRoundTrips(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":""}}]}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "k", "", time.Second)
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "assistant", Content: ""},
		{Role: "user", Content: "again"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(msgs))
	}
	assistant, _ := msgs[1].(map[string]any)
	if content, ok := assistant["content"]; !ok || content != "" {
		t.Fatalf("messages[1] = %v, want explicit empty content", assistant)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, "k", "", 50*time.Millisecond)
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("Complete() expected timeout error")
	}
	var se *StatusError
	if errors.As(err, &se) || errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Complete() error = %v, want transport error", err)
	}
}

func TestNewSelectsMode(t *testing.T) {
	c, err := New(Config{Mode: "mock"})
	if err != nil {
		t.Fatalf("New(mock) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("New(mock) = %T, want *MockClient", c)
	}

	c, err = New(Config{BaseURL: DefaultBaseURL})
	if err != nil {
		t.Fatalf("New(default) error = %v", err)
	}
	hc, ok := c.(*HTTPClient)
	if !ok {
		t.Fatalf("New(default) = %T, want *HTTPClient", c)
	}
	if hc.Model() != DefaultModel {
		t.Fatalf("Model() = %q, want %q", hc.Model(), DefaultModel)
	}

	if _, err := New(Config{Mode: "http"}); err == nil {
		t.Fatalf("New(http) without base url should fail")
	}
	if _, err := New(Config{Mode: "grpc"}); err == nil {
		t.Fatalf("New(grpc) should fail")
	}
}

func TestMockClientEchoesLastUserMessage(t *testing.T) {
	c := NewMockClient()
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "ok"},
		{Role: "user", Content: "second"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.HasPrefix(reply, "I heard you: second") {
		t.Fatalf("reply = %q, want echo of last user message", reply)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Complete() on cancelled ctx error = %v, want context.Canceled", err)
	}
}
