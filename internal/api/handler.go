package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/domain"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/planner"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/queue"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/skill"
	"github.com/EstifanosTeklay/autonomous-influencer-infrastructure/internal/trigger"
)

// TaskGetter looks up a recorded task snapshot by id.
type TaskGetter interface {
	Get(ctx context.Context, taskID string) (*domain.Task, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	planner  *planner.Planner
	queue    queue.TaskQueue
	tasks    TaskGetter
	registry *skill.Registry
	triggers *trigger.Handler
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(p *planner.Planner, q queue.TaskQueue, tasks TaskGetter, reg *skill.Registry, triggers *trigger.Handler, logger *zap.Logger) *Handler {
	return &Handler{
		planner:  p,
		queue:    q,
		tasks:    tasks,
		registry: reg,
		triggers: triggers,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/goals", h.submitGoal)
		r.Get("/tasks/{id}", h.getTask)
		r.Get("/agents/{id}/queue", h.queueDepth)

		r.Get("/skills", h.listSkills)
		r.Get("/skills/{id}", h.getSkill)

		r.Post("/triggers", h.handleTrigger)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type goalRequest struct {
	Goal string `json:"goal"`
}

func (h *Handler) submitGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	queued, err := h.planner.DecomposeAndQueue(r.Context(), req.Goal)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "queued",
		"queued_count": queued,
	})
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) queueDepth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	depth, err := h.queue.Depth(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id":  id,
		"queue_key": queue.BaseKey(id),
		"depth":     depth,
	})
}

func (h *Handler) listSkills(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	ids := h.registry.List(category)

	metas := make([]skill.Metadata, 0, len(ids))
	for _, id := range ids {
		if e, err := h.registry.Get(id); err == nil {
			metas = append(metas, e.Metadata)
		}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (h *Handler) getSkill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry.Metadata)
}

func (h *Handler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var event trigger.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.triggers.Handle(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "processed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "surfaced",
		"result": result,
	})
}

// writeError maps the typed error kinds onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		qe *domain.QueueCapacityExceededError
		nf *domain.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &qe):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
