// Package session keeps the in-progress dialogue of every user.
package session

import (
	"sync"

	"kamadata-bot/internal/dialogue"
)

// Memory is a process-local dialogue.Store. Sessions live until they are
// deleted or the process restarts.
type Memory struct {
	mu       sync.RWMutex
	sessions map[int64]*dialogue.Session
}

func NewMemory() *Memory {
	return &Memory{sessions: make(map[int64]*dialogue.Session)}
}

func (m *Memory) Get(userID int64) (*dialogue.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	return s, ok
}

func (m *Memory) Put(s *dialogue.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.UserID] = s
}

func (m *Memory) Delete(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
}

// Len returns the number of resident sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

var _ dialogue.Store = (*Memory)(nil)
