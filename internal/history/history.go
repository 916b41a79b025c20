package history

import (
	"sync"

	"azusa-imp/internal/llm"
)

// Manager keeps a bounded conversation per chat key.
type Manager struct {
	mu       sync.RWMutex
	limit    int
	sessions map[string][]llm.Message
}

// NewManager returns a manager keeping at most limit messages per key.
// A non-positive limit keeps everything.
func NewManager(limit int) *Manager {
	return &Manager{limit: limit, sessions: make(map[string][]llm.Message)}
}

func (m *Manager) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}

func (m *Manager) AppendUser(key, content string) {
	m.append(key, llm.Message{Role: llm.RoleUser, Content: content})
}

func (m *Manager) AppendAssistant(key, content string) {
	m.append(key, llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (m *Manager) append(key string, msg llm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append(m.sessions[key], msg)
	if m.limit > 0 && len(msgs) > m.limit {
		msgs = append([]llm.Message(nil), msgs[len(msgs)-m.limit:]...)
	}
	m.sessions[key] = msgs
}

// Get returns a copy of the stored messages for key.
func (m *Manager) Get(key string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.sessions[key]
	out := make([]llm.Message, len(es))
	copy(out, es)
	return out
}
