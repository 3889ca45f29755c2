package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ent0n29/personachat/internal/chat"
	"github.com/ent0n29/personachat/internal/config"
	"github.com/ent0n29/personachat/internal/observability"
	"github.com/ent0n29/personachat/internal/persona"
)

// maxBodyBytes caps request bodies on the chat endpoint. Messages are
// truncated far below this anyway.
const maxBodyBytes = 1 << 20

type Server struct {
	cfg     config.Config
	chat    *chat.Service
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func New(cfg config.Config, chatService *chat.Service, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	if cfg.ChatPath == "" {
		cfg.ChatPath = "/api/chat"
	}
	return &Server{
		cfg:     cfg,
		chat:    chatService,
		metrics: metrics,
		logger:  logger.With().Str("component", "httpapi").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestContext, s.accessLog, s.recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	// Every method reaches the handler; the service answers non-POST with 405.
	r.HandleFunc(s.cfg.ChatPath, s.handleChat)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"upstream_mode":       s.cfg.UpstreamMode,
		"upstream_configured": s.cfg.UpstreamConfigured(),
		"domains":             listDomains(),
	})
}

func listDomains() []persona.Persona {
	ids := persona.IDs()
	out := make([]persona.Persona, 0, len(ids))
	for _, id := range ids {
		if p, ok := persona.Lookup(id); ok {
			out = append(out, p)
		}
	}
	return out
}

type errorResponse struct {
	Error string `json:"error"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
