package chat

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ent0n29/personachat/internal/logging"
	"github.com/ent0n29/personachat/internal/observability"
	"github.com/ent0n29/personachat/internal/persona"
	"github.com/ent0n29/personachat/internal/policy"
	"github.com/ent0n29/personachat/internal/ratelimit"
	"github.com/ent0n29/personachat/internal/reliability"
	"github.com/ent0n29/personachat/internal/session"
	"github.com/ent0n29/personachat/internal/upstream"
)

// MaxMessageChars bounds user message length; the excess is dropped silently.
const MaxMessageChars = 1000

// Request is one inbound chat submission.
type Request struct {
	Method    string
	ClientID  string
	Domain    string
	Message   string
	SessionID string
}

type Reply struct {
	Text string
}

type Options struct {
	// UpstreamTimeout bounds the completion call. Defaults to upstream.DefaultTimeout.
	UpstreamTimeout time.Duration
	Logger          zerolog.Logger
	Metrics         *observability.Metrics
	Now             func() time.Time
}

// Service validates chat requests and relays them upstream. It holds no
// per-call state; the limiter and session store are shared and live for the
// whole process.
type Service struct {
	limiter   *ratelimit.Limiter
	sessions  *session.Store
	completer upstream.Completer
	metrics   *observability.Metrics
	logger    zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
	tracer    trace.Tracer
}

func NewService(limiter *ratelimit.Limiter, sessions *session.Store, completer upstream.Completer, opts Options) *Service {
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = upstream.DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		limiter:   limiter,
		sessions:  sessions,
		completer: completer,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		timeout:   opts.UpstreamTimeout,
		now:       opts.Now,
		tracer:    otel.Tracer("github.com/ent0n29/personachat/internal/chat"),
	}
}

// Handle runs one request through method check, rate limiting, validation,
// history update and the upstream call, in that order.
func (s *Service) Handle(ctx context.Context, req Request) (Reply, error) {
	start := s.now()
	reply, err := s.handle(ctx, req, start)

	s.metrics.ObserveRequest(Outcome(err))
	s.metrics.ObserveRequestTotal(s.now().Sub(start))
	s.metrics.SetTableSizes(s.sessions.Len(), s.limiter.Len())
	return reply, err
}

func (s *Service) handle(ctx context.Context, req Request, now time.Time) (Reply, error) {
	if req.Method != http.MethodPost {
		return Reply{}, ErrMethodNotAllowed
	}

	if d := s.limiter.CheckAndIncrement(req.ClientID, now); !d.Allowed {
		return Reply{}, &RateLimitError{Decision: d, At: now}
	}

	if req.Domain == "" || req.Message == "" || req.SessionID == "" {
		return Reply{}, ErrMissingField
	}

	prompt, ok := persona.Prompt(req.Domain)
	if !ok {
		return Reply{}, ErrUnknownDomain
	}

	text := Truncate(req.Message, MaxMessageChars)

	// Concurrent requests on one session each work on their own copy;
	// the last one to persist wins.
	conv := s.sessions.GetOrCreate(req.SessionID, prompt)
	conv = session.AppendAndTrim(conv, session.Message{Role: session.RoleUser, Content: text})

	log := s.requestLogger(ctx).With().
		Str("session_id", req.SessionID).
		Str("domain", req.Domain).
		Logger()

	answer, err := s.complete(ctx, req.Domain, conv)
	if err != nil {
		return Reply{}, s.upstreamFailure(log, err)
	}

	conv = session.AppendAndTrim(conv, session.Message{Role: session.RoleAssistant, Content: answer})
	s.sessions.Persist(req.SessionID, conv)

	log.Debug().Int("history_len", len(conv)).Msg("chat turn completed")
	return Reply{Text: answer}, nil
}

// complete calls upstream with a deadline but without the caller's
// cancellation: once started, a call runs until it returns or times out.
func (s *Service) complete(ctx context.Context, domain string, conv session.Conversation) (string, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	callCtx, span := s.tracer.Start(callCtx, "chat.upstream_complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("chat.domain", domain),
			attribute.Int("chat.messages", len(conv)),
		),
	)
	defer span.End()

	started := time.Now()
	answer, err := s.completer.Complete(callCtx, toUpstream(conv))
	elapsed := time.Since(started)

	kind := ""
	if err != nil {
		kind = reliability.ClassifyUpstream(err).Kind
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
	}
	s.metrics.ObserveUpstream(elapsed, kind)
	return answer, err
}

func (s *Service) upstreamFailure(log zerolog.Logger, err error) error {
	class := reliability.ClassifyUpstream(err)
	ev := log.Error().
		Str("kind", class.Kind).
		Bool("retryable", class.Retryable)

	var se *upstream.StatusError
	if errors.As(err, &se) {
		ev = ev.Int("status", se.StatusCode).Str("upstream_body", policy.ForLog(se.Body))
	} else {
		ev = ev.Str("error", policy.ForLog(err.Error()))
	}
	ev.Msg("upstream completion failed")

	return &UpstreamError{Err: err, Class: class}
}

func (s *Service) requestLogger(ctx context.Context) zerolog.Logger {
	return logging.FromContext(ctx, s.logger).With().Str("component", "chat").Logger()
}

func toUpstream(conv session.Conversation) []upstream.Message {
	out := make([]upstream.Message, 0, len(conv))
	for _, m := range conv {
		out = append(out, upstream.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// Truncate returns at most limit characters (Unicode code points) of s.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
