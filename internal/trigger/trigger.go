package trigger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/tool"
)

// Recognized event types.
const (
	TypePerformanceOutlier = "performance_outlier"
	TypePassageTime        = "passage_time"
)

// Event is an external stimulus delivered to the system.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Handler adapts incoming events onto the tool-call boundary. It carries no
// state beyond the caller and is safe for concurrent use.
type Handler struct {
	tools  tool.Caller
	logger *zap.Logger
}

// NewHandler builds a trigger handler.
func NewHandler(tools tool.Caller, logger *zap.Logger) *Handler {
	return &Handler{tools: tools, logger: logger}
}

// Handle dispatches one event. A performance_outlier result is surfaced to
// the caller for operator attention; passage_time is processed internally
// and returns nothing. Unknown types fail with a ValidationError.
func (h *Handler) Handle(ctx context.Context, event Event) (tool.Result, error) {
	switch event.Type {
	case TypePerformanceOutlier:
		res, err := h.tools.CallTool(ctx, "log_performance_outlier_trigger", event.Data)
		if err != nil {
			return nil, fmt.Errorf("handle performance_outlier: %w", err)
		}
		h.logger.Info("performance outlier surfaced", zap.Any("data", event.Data))
		return res, nil

	case TypePassageTime:
		if _, err := h.tools.CallTool(ctx, "log_passage_time_trigger", event.Data); err != nil {
			return nil, fmt.Errorf("handle passage_time: %w", err)
		}
		h.logger.Debug("passage of time processed")
		return nil, nil

	default:
		return nil, &domain.ValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("unrecognized trigger type %q", event.Type),
		}
	}
}
