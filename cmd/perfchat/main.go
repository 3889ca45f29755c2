package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type options struct {
	baseURL        string
	chatPath       string
	domain         string
	sessionID      string
	clientID       string
	turns          int
	interTurnDelay time.Duration
	requestTimeout time.Duration
	texts          []string
	verbose        bool
}

type chatRequest struct {
	Domain    string `json:"domain"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

type turnResult struct {
	Status  int
	Latency time.Duration
}

var defaultQuestions = []string{
	"Reply in three words: what is a black hole?",
	"Reply in three words: why is the sky blue?",
	"Reply in three words: best way to learn?",
	"Reply in three words: what came first?",
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "perfchat: %v\n", err)
		os.Exit(2)
	}
	if err := run(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perfchat: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var cfg options
	var textsRaw string
	var interTurnMS int
	var timeoutMS int

	fs := flag.NewFlagSet("perfchat", flag.ContinueOnError)
	fs.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "personachat base URL")
	fs.StringVar(&cfg.chatPath, "chat-path", "/api/chat", "chat endpoint path")
	fs.StringVar(&cfg.domain, "domain", "explorer", "persona domain for every turn")
	fs.StringVar(&cfg.sessionID, "session-id", "", "session id (random when empty)")
	fs.StringVar(&cfg.clientID, "client-id", "", "optional X-Forwarded-For value")
	fs.IntVar(&cfg.turns, "turns", 10, "number of turns to replay")
	fs.IntVar(&interTurnMS, "inter-turn-ms", 2100, "delay between turns in milliseconds")
	fs.IntVar(&timeoutMS, "timeout-ms", 45000, "per-request timeout in milliseconds")
	fs.StringVar(&textsRaw, "texts", "", "questions separated by '|' (optional)")
	fs.BoolVar(&cfg.verbose, "verbose", true, "print replay progress")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if !strings.HasPrefix(cfg.chatPath, "/") {
		return options{}, fmt.Errorf("chat-path must start with /")
	}
	if cfg.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if interTurnMS < 0 {
		interTurnMS = 0
	}
	if timeoutMS < 1000 {
		timeoutMS = 1000
	}
	cfg.interTurnDelay = time.Duration(interTurnMS) * time.Millisecond
	cfg.requestTimeout = time.Duration(timeoutMS) * time.Millisecond
	if strings.TrimSpace(cfg.sessionID) == "" {
		cfg.sessionID = "perf-" + uuid.NewString()
	}

	cfg.texts = splitTexts(textsRaw)
	if len(cfg.texts) == 0 {
		if strings.TrimSpace(textsRaw) != "" {
			return options{}, fmt.Errorf("texts produced no non-empty questions")
		}
		cfg.texts = append([]string(nil), defaultQuestions...)
	}
	return cfg, nil
}

func splitTexts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func run(ctx context.Context, cfg options) error {
	client := resty.New().
		SetBaseURL(cfg.baseURL).
		SetTimeout(cfg.requestTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.clientID != "" {
		client.SetHeader("X-Forwarded-For", cfg.clientID)
	}

	if cfg.verbose {
		fmt.Printf("perfchat: session=%s domain=%s turns=%d\n", cfg.sessionID, cfg.domain, cfg.turns)
	}

	results := make([]turnResult, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		text := cfg.texts[i%len(cfg.texts)]
		res, err := sendTurn(ctx, client, cfg, text)
		if err != nil {
			return fmt.Errorf("turn %d: %w", i+1, err)
		}
		results = append(results, res)
		if cfg.verbose {
			fmt.Printf("perfchat: turn %d/%d status=%d latency=%s\n", i+1, cfg.turns, res.Status, res.Latency.Round(time.Millisecond))
		}
		if cfg.interTurnDelay > 0 && i < cfg.turns-1 {
			time.Sleep(cfg.interTurnDelay)
		}
	}

	fmt.Println(summarize(results))
	return nil
}

// sendTurn posts one question. A 429 is waited out once using Retry-After.
func sendTurn(ctx context.Context, client *resty.Client, cfg options, text string) (turnResult, error) {
	body := chatRequest{Domain: cfg.domain, Message: text, SessionID: cfg.sessionID}

	for attempt := 0; ; attempt++ {
		var out chatResponse
		start := time.Now()
		res, err := client.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(&out).
			SetError(&out).
			Post(cfg.chatPath)
		if err != nil {
			return turnResult{}, err
		}
		elapsed := time.Since(start)

		if res.StatusCode() == http.StatusTooManyRequests && attempt == 0 {
			time.Sleep(retryDelay(res.Header().Get("Retry-After")))
			continue
		}
		if !res.IsSuccess() {
			return turnResult{}, fmt.Errorf("HTTP %d: %s", res.StatusCode(), out.Error)
		}
		return turnResult{Status: res.StatusCode(), Latency: elapsed}, nil
	}
}

func retryDelay(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs) * time.Second
}

func summarize(results []turnResult) string {
	if len(results) == 0 {
		return "perfchat: no turns completed"
	}
	ms := make([]float64, 0, len(results))
	for _, r := range results {
		ms = append(ms, float64(r.Latency.Microseconds())/1000)
	}
	sort.Float64s(ms)
	return fmt.Sprintf("perfchat: turns=%d p50_ms=%.1f p95_ms=%.1f max_ms=%.1f",
		len(ms), percentile(ms, 0.50), percentile(ms, 0.95), ms[len(ms)-1])
}

// percentile uses nearest-rank on sorted input.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
