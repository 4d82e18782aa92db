package skill

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

// Entry is one registered skill: its immutable metadata and the factory
// that builds an executable instance.
type Entry struct {
	Metadata Metadata
	Factory  Factory
}

// Registry indexes the available skills by identifier and category. Skills
// register at process initialization; after that the registry is a
// read-only index, safe for unsynchronized concurrent reads.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// Register validates a skill's descriptor and adds it to the index. It
// fails fast on a descriptor missing required fields or a duplicate id.
func (r *Registry) Register(meta Metadata, factory Factory) error {
	if err := meta.Validate(); err != nil {
		return err
	}
	if factory == nil {
		return &domain.ValidationError{Field: "factory", Reason: fmt.Sprintf("skill %q has no factory", meta.ID)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[meta.ID]; exists {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("skill %q already registered", meta.ID)}
	}
	r.entries[meta.ID] = &Entry{Metadata: meta, Factory: factory}
	r.logger.Info("skill registered",
		zap.String("id", meta.ID),
		zap.String("version", meta.Version),
		zap.String("category", meta.Category))
	return nil
}

// Get returns the entry for a skill id, or a NotFoundError.
func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "skill", ID: id}
	}
	return e, nil
}

// List returns skill ids filtered by category; an empty category returns
// all. Results are sorted for stable output.
func (r *Registry) List(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id, e := range r.entries {
		if category != "" && e.Metadata.Category != category {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Metadatas returns the descriptors of every registered skill.
func (r *Registry) Metadatas() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.entries))
	for _, id := range r.listLocked() {
		out = append(out, r.entries[id].Metadata)
	}
	return out
}

func (r *Registry) listLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MissingDependencies reports, per skill, the required MCP servers that the
// given predicate does not know. Used at startup to fail fast before any
// task routes to a skill whose backing servers are absent.
func (r *Registry) MissingDependencies(has func(server string) bool) map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	missing := make(map[string][]string)
	for id, e := range r.entries {
		for _, server := range e.Metadata.MCPServers.Required {
			if !has(server) {
				missing[id] = append(missing[id], server)
			}
		}
	}
	return missing
}

// RegisterBuiltins registers the skills shipped with this build. This is
// the startup-time registration table: every variant implements Skill and
// lands here, so the registry stays a thin lookup instead of a filesystem
// scanner.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		meta    Metadata
		factory Factory
	}{
		{trendDetectorMetadata, func(tools tool.Caller, logger *zap.Logger) Skill {
			return NewTrendDetector(tools, logger)
		}},
		{captionWriterMetadata, func(tools tool.Caller, logger *zap.Logger) Skill {
			return NewCaptionWriter(tools, logger)
		}},
		{socialPublisherMetadata, func(tools tool.Caller, logger *zap.Logger) Skill {
			return NewSocialPublisher(tools, logger)
		}},
	}
	for _, b := range builtins {
		if err := r.Register(b.meta, b.factory); err != nil {
			return fmt.Errorf("register builtin %s: %w", b.meta.ID, err)
		}
	}
	return nil
}
