package app

import (
	"sync"

	"github.com/dkeye/Bridge/internal/core"
	"github.com/dkeye/Bridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry is the process-wide table of active bridge sessions. It is
// the only state shared across sessions; every mutation is idempotent
// where the session lifecycle requires it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	byCall   map[domain.CallID]domain.SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.SessionID]*Session),
		byCall:   make(map[domain.CallID]domain.SessionID),
	}
}

// Register inserts a session. A live session for the same call rejects
// the newcomer with ErrDuplicateSession; the existing session stays.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCall[s.CallID()]; ok && s.CallID() != "" {
		return core.ErrDuplicateSession
	}
	if _, ok := r.sessions[s.ID()]; ok {
		return core.ErrDuplicateSession
	}
	r.sessions[s.ID()] = s
	if s.CallID() != "" {
		r.byCall[s.CallID()] = s.ID()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Str("call_id", string(s.CallID())).Msg("session registered")
	return nil
}

// Deregister removes a session; absent entries are a no-op.
func (r *Registry) Deregister(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(r.sessions, sid)
	if s.CallID() != "" {
		if cur, ok := r.byCall[s.CallID()]; ok && cur == sid {
			delete(r.byCall, s.CallID())
		}
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session deregistered")
}

func (r *Registry) Lookup(sid domain.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionInfo is a read-only view for the status API.
type SessionInfo struct {
	SessionID domain.SessionID `json:"session_id"`
	CallID    domain.CallID    `json:"call_id"`
	State     string           `json:"state"`
	CreatedAt string           `json:"created_at"`
}

func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	return out
}
