package skill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

// Skill categories.
const (
	CategoryPerception = "perception"
	CategoryGeneration = "generation"
	CategoryEngagement = "engagement"
)

// Property describes one field of a skill's input or output schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is the JSON-Schema-like shape every skill declares for its input
// and output.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// MCPServers lists the external tool servers a skill depends on.
type MCPServers struct {
	Required []string `json:"required"`
	Optional []string `json:"optional,omitempty"`
}

// Metadata is the interface contract every skill publishes. It is immutable
// once registered.
type Metadata struct {
	ID           string         `json:"id"`
	Version      string         `json:"version"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Category     string         `json:"category"`
	InputSchema  Schema         `json:"input_schema"`
	OutputSchema Schema         `json:"output_schema"`
	MCPServers   MCPServers     `json:"mcp_servers"`
	Resources    []string       `json:"resources"`
	Constraints  map[string]any `json:"constraints"`
}

// Validate checks the required descriptor fields and fails fast naming the
// first missing one.
func (m *Metadata) Validate() error {
	checks := []struct {
		field string
		ok    bool
	}{
		{"id", m.ID != ""},
		{"version", m.Version != ""},
		{"name", m.Name != ""},
		{"description", m.Description != ""},
		{"category", m.Category != ""},
		{"input_schema", m.InputSchema.Type == "object" && m.InputSchema.Properties != nil},
		{"output_schema", m.OutputSchema.Type == "object" && m.OutputSchema.Properties != nil},
		{"mcp_servers.required", m.MCPServers.Required != nil},
		{"resources", m.Resources != nil},
		{"constraints", m.Constraints != nil},
	}
	for _, c := range checks {
		if !c.ok {
			return &domain.ValidationError{
				Field:  c.field,
				Reason: fmt.Sprintf("skill descriptor %q missing required field", m.ID),
			}
		}
	}
	return nil
}

// Result is what a skill execution returns: the typed output object plus
// the cost the skill reports for the call.
type Result struct {
	Output  any
	CostUSD float64
}

// Skill is the contract shared by all capability variants. Input is
// validated against the declared schema before any work happens; invalid
// input fails fast with a ValidationError naming the offending field.
// Expected per-item failures (one platform of many) degrade inside the
// output object rather than failing the call; precondition violations
// (missing config, disconnected backing server) surface as errors.
type Skill interface {
	Meta() Metadata
	Execute(ctx context.Context, input map[string]any) (*Result, error)
}

// Factory builds a skill instance bound to the tool-call boundary.
type Factory func(tools tool.Caller, logger *zap.Logger) Skill

// --- input decoding helpers shared by the skill variants ---

func stringField(input map[string]any, key, fallback string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return fallback
}

func floatField(input map[string]any, key string, fallback float64) (float64, error) {
	v, ok := input[key]
	if !ok {
		return fallback, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, &domain.ValidationError{Field: key, Reason: fmt.Sprintf("expected number, got %T", v)}
	}
}

func intField(input map[string]any, key string, fallback int) (int, error) {
	v, ok := input[key]
	if !ok {
		return fallback, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, &domain.ValidationError{Field: key, Reason: fmt.Sprintf("expected integer, got %T", v)}
	}
}

func boolField(input map[string]any, key string, fallback bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return fallback
}

func stringSliceField(input map[string]any, key string) []string {
	var out []string
	switch v := input[key].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func enumMember(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
