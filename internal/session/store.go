package session

import (
	"errors"
	"sync"
	"time"
)

// MaxHistory is how many messages are retained after the system message.
const MaxHistory = 10

var ErrNotFound = errors.New("session not found")

type record struct {
	conv           Conversation
	lastActivityAt time.Time
}

// Store keeps conversations in process memory for the lifetime of the
// process. Reads hand out copies; callers write back with Persist.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*record
	now      func() time.Time
	onExpire func(sessionID string)
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*record),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) SetExpireHook(hook func(sessionID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = hook
}

// GetOrCreate returns the stored conversation for sessionID, or a new one
// seeded with systemPrompt. A new conversation is not stored until Persist.
func (s *Store) GetOrCreate(sessionID, systemPrompt string) Conversation {
	s.mu.RLock()
	r, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return r.conv.clone()
	}
	return Conversation{{Role: RoleSystem, Content: systemPrompt}}
}

func (s *Store) Get(sessionID string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.conv.clone(), nil
}

// Persist replaces the stored conversation for sessionID.
func (s *Store) Persist(sessionID string, conv Conversation) {
	c := conv.clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = &record{conv: c, lastActivityAt: s.now()}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExpireIdle removes sessions not persisted within ttl of now.
func (s *Store) ExpireIdle(now time.Time, ttl time.Duration) int {
	var expired []string

	s.mu.Lock()
	for id, r := range s.sessions {
		if now.Sub(r.lastActivityAt) < ttl {
			continue
		}
		delete(s.sessions, id)
		expired = append(expired, id)
	}
	hook := s.onExpire
	s.mu.Unlock()

	if hook != nil {
		for _, id := range expired {
			hook(id)
		}
	}
	return len(expired)
}

// AppendAndTrim appends msg and keeps the system message plus the
// MaxHistory most recent entries. conv is not modified.
func AppendAndTrim(conv Conversation, msg Message) Conversation {
	out := make(Conversation, 0, len(conv)+1)
	out = append(out, conv...)
	out = append(out, msg)
	if len(out)-1 <= MaxHistory {
		return out
	}

	trimmed := make(Conversation, 0, MaxHistory+1)
	trimmed = append(trimmed, out[0])
	trimmed = append(trimmed, out[len(out)-MaxHistory:]...)
	return trimmed
}
