package httpapi

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ent0n29/personachat/internal/chat"
	"github.com/ent0n29/personachat/internal/logging"
)

// Client-facing bodies. These are fixed; nothing from upstream or from
// internal errors is ever added to them.
const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgTooManyRequests  = "Too many requests. Please wait a moment."
	msgMissingFields    = "Missing required fields: domain, message, or sessionId"
	msgInvalidDomain    = "Invalid domain specified"
	msgInternal         = "AI core encountered an internal sync error. Please retry."
)

type chatRequest struct {
	Domain    string `json:"domain"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req := chat.Request{
		Method:   r.Method,
		ClientID: s.clientID(r),
	}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var body chatRequest
		// An unreadable body leaves every field empty and is reported as
		// missing fields, after the rate limiter has counted it.
		if err := decodeJSON(r, &body); err == nil {
			req.Domain = body.Domain
			req.Message = body.Message
			req.SessionID = body.SessionID
		} else if !errors.Is(err, errEmptyBody) {
			log := logging.FromContext(r.Context(), s.logger)
			log.Debug().Err(err).Msg("chat body not decodable")
		}
	}

	reply, err := s.chat.Handle(r.Context(), req)
	if err != nil {
		s.respondChatError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{Response: reply.Text})
}

func (s *Server) respondChatError(w http.ResponseWriter, err error) {
	var rle *chat.RateLimitError
	switch {
	case errors.Is(err, chat.ErrMethodNotAllowed):
		w.Header().Set("Allow", http.MethodPost)
		respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	case errors.As(err, &rle):
		w.Header().Set("Retry-After", retryAfterSeconds(rle.RetryAfter()))
		respondError(w, http.StatusTooManyRequests, msgTooManyRequests)
	case errors.Is(err, chat.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, msgTooManyRequests)
	case errors.Is(err, chat.ErrMissingField):
		respondError(w, http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, chat.ErrUnknownDomain):
		respondError(w, http.StatusBadRequest, msgInvalidDomain)
	default:
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}

// clientID picks the rate-limit key: the first X-Forwarded-For hop when
// trusted, otherwise the peer host.
func (s *Server) clientID(r *http.Request) string {
	if s.cfg.TrustForwardedFor {
		if hop := firstForwardedHop(r.Header.Get("X-Forwarded-For")); hop != "" {
			return hop
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func firstForwardedHop(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
