package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultPushSchedule pushes every five minutes.
const DefaultPushSchedule = "@every 5m"

const pushJob = "push"

// ─────────────────────────────────────────────────────────────
// Scheduler: periodic allMetrics push to a sink
// ─────────────────────────────────────────────────────────────

// Scheduler runs allMetrics for the configured nodes on a cron spec and
// delivers every block to the sink.
type Scheduler struct {
	queries *QueryService
	sink    BlockSink
	logger  *zap.Logger
	guard   runGuard

	mu        sync.Mutex
	cronSched *cron.Cron
	spec      string
}

// NewScheduler wires a scheduler. Nothing runs until Start.
func NewScheduler(queries *QueryService, sink BlockSink, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{queries: queries, sink: sink, logger: logger}
}

// Start (re)builds the cron schedule for spec. Any previous schedule is stopped first.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultPushSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("scheduled push finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	if s.cronSched != nil {
		s.cronSched.Stop()
	}
	s.cronSched = c
	s.spec = spec
	s.mu.Unlock()

	c.Start()
	s.logger.Info("push scheduled", zap.String("schedule", spec))
	return nil
}

// RunOnce performs one push. A tick arriving while the previous push is still
// running is skipped rather than queued.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.guard.TryAcquire(pushJob) {
		s.logger.Info("push skipped, previous run still in flight")
		return nil
	}
	defer s.guard.Release(pushJob)

	s.mu.Lock()
	queries := s.queries
	s.mu.Unlock()

	blocks, queryErr := queries.AllMetrics(ctx)
	var sendErr error
	for _, b := range blocks {
		if err := s.sink.Send(ctx, b); err != nil {
			s.logger.Warn("deliver block failed", zap.Error(err))
			sendErr = err
		}
	}
	s.logger.Info("push delivered", zap.Int("blocks", len(blocks)))

	if queryErr != nil {
		return queryErr
	}
	return sendErr
}

// SetQueries swaps the query service used by subsequent runs, e.g. after a
// config reload changed the node list or source.
func (s *Scheduler) SetQueries(q *QueryService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = q
}

// Spec returns the active schedule, or "" when stopped.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// WaitRunning blocks until an in-flight push finishes or ctx is cancelled.
func (s *Scheduler) WaitRunning(ctx context.Context) {
	s.guard.Wait(ctx)
}

// Stop halts the schedule. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
	s.spec = ""
}
