package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Sink delivers rendered text blocks to a destination.
type Sink interface {
	Send(ctx context.Context, block string) error
	Close() error
}

// ── Writer Sink ────────────────────────────────────────────

// WriterSink writes each block to w followed by a blank line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Send(_ context.Context, block string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s\n\n", block)
	return err
}

func (s *WriterSink) Close() error { return nil }

// ── NATS Sink ──────────────────────────────────────────────
// Publishes each block as one message; a chat bridge subscribed to the
// subject delivers it.

// NATSSink publishes blocks to a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to url with reconnects enabled.
func NewNATSSink(url, subject string, logger *zap.Logger) (*NATSSink, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name("nodewatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSSink{nc: nc, subject: subject}, nil
}

func (s *NATSSink) Send(ctx context.Context, block string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.nc == nil || s.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	return s.nc.Publish(s.subject, []byte(block))
}

func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	err := s.nc.FlushTimeout(2 * time.Second)
	s.nc.Close()
	return err
}
