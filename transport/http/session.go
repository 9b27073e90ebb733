package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionManager tracks MCP sessions for the streamable HTTP transport.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Session is one MCP session and its negotiated state.
type Session struct {
	ID              string
	Created         time.Time
	LastSeen        time.Time
	ProtocolVersion string
	Initialized     bool
	Transport       *StreamableTransport
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// CreateSession registers a session, replacing any prior state for the ID.
func (sm *SessionManager) CreateSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	sm.sessions[sessionID] = &Session{
		ID:       sessionID,
		Created:  now,
		LastSeen: now,
	}
}

// TouchSession refreshes a session's activity timestamp. It reports whether
// the session exists.
func (sm *SessionManager) TouchSession(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return false
	}
	session.LastSeen = time.Now()
	return true
}

// HasSession reports whether the session exists without touching it.
func (sm *SessionManager) HasSession(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	_, exists := sm.sessions[sessionID]
	return exists
}

// MarkInitialized records that the client completed the initialize handshake.
func (sm *SessionManager) MarkInitialized(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[sessionID]; exists {
		session.Initialized = true
		session.LastSeen = time.Now()
	}
}

// SetProtocolVersion stores the protocol revision negotiated at initialize.
func (sm *SessionManager) SetProtocolVersion(sessionID, version string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[sessionID]; exists {
		session.ProtocolVersion = version
	}
}

// GetProtocolVersion returns the negotiated revision, if the session exists.
func (sm *SessionManager) GetProtocolVersion(sessionID string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return "", false
	}
	return session.ProtocolVersion, true
}

// SetTransport binds an SSE stream to the session. It reports false if the
// session disappeared before binding. A previous stream is closed first.
func (sm *SessionManager) SetTransport(sessionID string, transport *StreamableTransport) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return false
	}
	if session.Transport != nil && session.Transport != transport {
		session.Transport.Close()
	}
	session.Transport = transport
	session.LastSeen = time.Now()
	return true
}

// ClearTransportIfMatch detaches the stream only if it is still the bound
// one, so a newer stream is never torn down by an old handler unwinding.
func (sm *SessionManager) ClearTransportIfMatch(sessionID string, transport *StreamableTransport) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[sessionID]; exists && session.Transport == transport {
		session.Transport = nil
	}
}

// RemoveSession drops a session and closes any bound stream.
func (sm *SessionManager) RemoveSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[sessionID]; exists {
		if session.Transport != nil {
			session.Transport.Close()
		}
		delete(sm.sessions, sessionID)
	}
}

// CleanupSessions removes sessions idle longer than timeout and returns how
// many were dropped.
func (sm *SessionManager) CleanupSessions(timeout time.Duration) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := 0
	now := time.Now()
	for sessionID, session := range sm.sessions {
		if now.Sub(session.LastSeen) > timeout {
			if session.Transport != nil {
				session.Transport.Close()
			}
			delete(sm.sessions, sessionID)
			removed++
		}
	}
	return removed
}
