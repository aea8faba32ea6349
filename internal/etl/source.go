package etl

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ── Source ──────────────────────────────────────────────────
// A Source retrieves one Snapshot from a remote system.
// Implementations live in etl/sources/, one file per source type.

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type and the settings it reads.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// FetchRequest narrows a fetch to specific nodes. Row-addressed sources
// (one request per node) need it; whole-table sources ignore it.
type FetchRequest struct {
	NodeIDs []string `json:"nodeIds,omitempty"`
}

// Source is the interface every metrics source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Schema returns the fixed column order of every Record this source emits.
	Schema() ColumnSchema

	// FetchSnapshot performs one fetch. A whole-fetch failure returns a
	// non-nil empty Snapshot together with the error, so callers can tell
	// "fetch failed" from "genuinely empty".
	FetchSnapshot(ctx context.Context, req FetchRequest) (*Snapshot, error)
}

// ── Source Registry ────────────────────────────────────────
// Built once at startup from config; nothing registers itself.

// Registry maps source types to configured sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry returns a registry holding the given sources.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.Register(s)
	}
	return r
}

// Register adds s under its spec type, replacing any previous source of that type.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Spec().Type] = s
}

// Get returns a registered source by type, or an error if not found.
func (r *Registry) Get(typ string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// List returns the specs of all registered sources, sorted by type.
func (r *Registry) List() []SourceSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]SourceSpec, 0, len(r.sources))
	for _, s := range r.sources {
		specs = append(specs, s.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Type < specs[j].Type })
	return specs
}
