package tool

import "context"

// Result is the structured payload returned by a tool call.
type Result map[string]any

// String returns the named field as a string, or "" if absent.
func (r Result) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Caller is the boundary through which the core reaches external capability
// providers. The core never embeds vendor-specific protocol logic; skills
// and the trigger adapter see only this interface. Failures surface as the
// domain error classes: connection/rate-limit problems as
// TransientDependencyError, unknown tools as NotFoundError.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (Result, error)
	ReadResource(ctx context.Context, uri string) ([]byte, error)
}
