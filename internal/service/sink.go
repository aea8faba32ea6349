package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// BlockSink: decouples services from the delivering transport
// ─────────────────────────────────────────────────────────────

// BlockSink delivers one rendered text block.
// transport.WriterSink and transport.NATSSink implement it; tests use MockSink.
type BlockSink interface {
	Send(ctx context.Context, block string) error
}

// MockSink is a test-friendly BlockSink that records every block.
type MockSink struct {
	mu     sync.Mutex
	Blocks []string
	// Err, when set, is returned from every Send after recording the block.
	Err error
}

func (m *MockSink) Send(_ context.Context, block string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blocks = append(m.Blocks, block)
	return m.Err
}

// Sent returns a copy of the recorded blocks.
func (m *MockSink) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Blocks...)
}
