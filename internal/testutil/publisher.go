package testutil

import (
	"context"
	"sync"

	"github.com/dwsmith1983/watchtower/internal/publish"
)

// Compile-time interface satisfaction check.
var _ publish.Publisher = (*MemoryPublisher)(nil)

// MemoryPublisher is an in-memory Publisher that records published messages.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []publish.Message

	// Fail, when set, makes Publish return it.
	Fail error
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) Publish(_ context.Context, msg publish.Message) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything published so far.
func (m *MemoryPublisher) Messages() []publish.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publish.Message, len(m.messages))
	copy(out, m.messages)
	return out
}
