package tool

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
)

// Server is one named capability provider behind the tool-call boundary.
type Server interface {
	Name() string
	Tools() []ToolInfo
	CallTool(ctx context.Context, name string, args map[string]any) (Result, error)
	ReadResource(ctx context.Context, uri string) ([]byte, error)
}

// Router fans tool calls out to the server that advertises the tool, and
// resource reads to the server whose name matches the URI scheme
// (news://... goes to the server named "news"). Registration happens once
// at startup; lookups are read-only afterwards.
type Router struct {
	mu      sync.RWMutex
	servers map[string]Server
	tools   map[string]Server // tool name → owning server
	logger  *zap.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		servers: make(map[string]Server),
		tools:   make(map[string]Server),
		logger:  logger,
	}
}

// Register indexes a connected server and its tools.
func (r *Router) Register(s Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s.Name()] = s
	for _, t := range s.Tools() {
		r.tools[t.Name] = s
	}
	r.logger.Info("tool server registered",
		zap.String("server", s.Name()),
		zap.Int("tools", len(s.Tools())))
}

// ServerNames returns the names of all registered servers.
func (r *Router) ServerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}

// HasServer reports whether a server with the given name is registered.
func (r *Router) HasServer(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.servers[name]
	return ok
}

// CallTool routes a named call to the server advertising that tool.
func (r *Router) CallTool(ctx context.Context, name string, args map[string]any) (Result, error) {
	r.mu.RLock()
	s, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "tool", ID: name}
	}
	return s.CallTool(ctx, name, args)
}

// ReadResource routes a URI to the server named after its scheme.
func (r *Router) ReadResource(ctx context.Context, uri string) ([]byte, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found {
		return nil, &domain.ValidationError{Field: "uri", Reason: "missing scheme"}
	}
	r.mu.RLock()
	s, ok := r.servers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "resource server", ID: scheme}
	}
	return s.ReadResource(ctx, uri)
}
