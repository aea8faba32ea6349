package service

import (
	"context"
	"sort"
	"sync"
)

// ExportedRunGuard is an exported alias so _test packages can test the guard.
type ExportedRunGuard = runGuard

// ─────────────────────────────────────────────────────────────
// runGuard: keeps a slow push from being overlapped by the next tick
// ─────────────────────────────────────────────────────────────

// runGuard admits at most one in-flight run per job name and lets shutdown
// wait for whatever is still running.
type runGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryAcquire marks name as running. It returns false if a run is already in flight.
func (g *runGuard) TryAcquire(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, busy := g.running[name]; busy {
		return false
	}
	g.running[name] = struct{}{}
	g.wg.Add(1)
	return true
}

// Release ends the run started by a successful TryAcquire.
func (g *runGuard) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[name]; !busy {
		return
	}
	delete(g.running, name)
	g.wg.Done()
}

// Running lists the names currently in flight, sorted.
func (g *runGuard) Running() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	names := make([]string, 0, len(g.running))
	for n := range g.running {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Wait blocks until every in-flight run is released or ctx is done.
func (g *runGuard) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
