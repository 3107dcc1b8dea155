package bridge

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memoryRegistry struct {
	mu       sync.RWMutex
	bindings map[string]Binding
}

// NewMemoryRegistry returns a process-local Registry; bindings are lost on restart.
func NewMemoryRegistry() Registry {
	return &memoryRegistry{bindings: make(map[string]Binding)}
}

func (m *memoryRegistry) Bind(_ context.Context, b Binding) (string, error) {
	token := newToken()
	m.mu.Lock()
	m.bindings[token] = b
	m.mu.Unlock()
	return token, nil
}

func (m *memoryRegistry) Resolve(_ context.Context, token string) (Binding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[token]
	if !ok {
		return Binding{}, ErrUnknownToken
	}
	return b, nil
}

func (m *memoryRegistry) Release(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.bindings, token)
	m.mu.Unlock()
	return nil
}

// newToken returns a compact token that fits Telegram's 64-byte callback limit.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
