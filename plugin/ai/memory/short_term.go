package memory

import (
	"sync"
	"time"

	"github.com/hrygo/nova/plugin/ai/aitime"
)

// Message represents a conversation message.
type Message struct {
	Role      string    `json:"role"` // "user" | "assistant" | "system"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ShortTermMemory keeps recent chat turns per session with a sliding window.
// Thread-safe for concurrent access.
type ShortTermMemory struct {
	mu       sync.Mutex
	sessions map[string]*sessionData
	maxSize  int // Maximum messages per session
	clock    aitime.Clock
}

type sessionData struct {
	messages   []Message
	lastAccess time.Time
}

// NewShortTermMemory creates a short-term memory store.
// maxSize specifies the maximum number of messages to keep per session (default 10).
func NewShortTermMemory(maxSize int, clock aitime.Clock) *ShortTermMemory {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &ShortTermMemory{
		sessions: make(map[string]*sessionData),
		maxSize:  maxSize,
		clock:    aitime.OrSystem(clock),
	}
}

// GetMessages retrieves up to limit recent messages, oldest first.
func (s *ShortTermMemory) GetMessages(sessionID string, limit int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || len(session.messages) == 0 {
		return []Message{}
	}
	session.lastAccess = s.clock.Now()

	messages := session.messages
	if limit > 0 && limit < len(messages) {
		messages = messages[len(messages)-limit:]
	}

	result := make([]Message, len(messages))
	copy(result, messages)
	return result
}

// AddMessage adds a message to a session.
func (s *ShortTermMemory) AddMessage(sessionID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	session, exists := s.sessions[sessionID]
	if !exists {
		session = &sessionData{messages: make([]Message, 0, s.maxSize)}
		s.sessions[sessionID] = session
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	session.messages = append(session.messages, msg)
	session.lastAccess = now
	if len(session.messages) > s.maxSize {
		session.messages = session.messages[len(session.messages)-s.maxSize:]
	}
}

// ClearSession removes all messages from a session.
func (s *ShortTermMemory) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// SessionCount returns the number of active sessions.
func (s *ShortTermMemory) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune removes sessions idle for longer than maxIdle and returns how many were removed.
func (s *ShortTermMemory) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.lastAccess) > maxIdle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
