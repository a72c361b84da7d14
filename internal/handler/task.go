package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
	"github.com/hiroki-koketsu/go-tasklist/internal/parser"
	"github.com/hiroki-koketsu/go-tasklist/internal/query"
	"github.com/hiroki-koketsu/go-tasklist/internal/repository"
	"github.com/hiroki-koketsu/go-tasklist/internal/telemetry"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-tasklist/internal/handler")

// TaskHandler handles HTTP requests for tasks, settings and transfers.
type TaskHandler struct {
	repo     *repository.TaskRepository
	settings *repository.SettingsRepository
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(repo *repository.TaskRepository, settings *repository.SettingsRepository, logger *slog.Logger, metrics *telemetry.Metrics) *TaskHandler {
	return &TaskHandler{
		repo:     repo,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// APIRoutes returns every route served under the API prefix.
func (h *TaskHandler) APIRoutes() chi.Router {
	r := chi.NewRouter()

	r.Mount("/tasks", h.Routes())
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
	r.Get("/export.json", h.ExportJSON)
	r.Get("/export.csv", h.ExportCSV)
	r.Post("/import", h.Import)

	return r
}

// Routes returns the chi router with task routes.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/quick", h.QuickAdd)
	r.Post("/parse", h.Parse)
	r.Post("/bulk-delete", h.BulkDelete)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.GetByID)
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/complete", h.ToggleComplete)
		r.Post("/star", h.ToggleStar)
		r.Post("/reorder", h.Reorder)
		r.Post("/subtasks", h.AddSubtask)
		r.Post("/subtasks/{subID}/toggle", h.ToggleSubtask)
		r.Delete("/subtasks/{subID}", h.DeleteSubtask)
	})

	return r
}

type fragmentRequest struct {
	Text string `json:"text"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type reorderRequest struct {
	TargetID string `json:"targetId"`
}

type subtaskRequest struct {
	Title string `json:"title"`
}

// List runs the query pipeline. Missing view and sort parameters fall
// back to the user's default settings.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.List")
	defer span.End()

	spec := query.ParseSpec(r.URL.Query(), h.settings.Get().QueryDefaults())
	h.logger.InfoContext(ctx, "listing tasks",
		slog.String("view", string(spec.View)),
		slog.String("sort", string(spec.Sort)),
		slog.String("tag", spec.Tag),
		slog.String("due", string(spec.Due)),
	)

	tasks := h.repo.Query(ctx, spec, h.now())

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.logger.InfoContext(ctx, "tasks listed", slog.Int("count", len(tasks)))

	h.respond(ctx, w, r, start, http.StatusOK, tasks)
}

// Create adds a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.Create")
	defer span.End()

	var req model.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	h.logger.InfoContext(ctx, "creating task", slog.String("title", req.Title))

	task, err := h.repo.Create(ctx, &req)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to create task", err)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.metrics.RecordMutation(ctx, "create")
	h.logger.InfoContext(ctx, "task created", slog.String("id", task.ID))

	h.respond(ctx, w, r, start, http.StatusCreated, task)
}

// QuickAdd creates a task from a free-text fragment.
func (h *TaskHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.QuickAdd")
	defer span.End()

	var req fragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	task, parsed, err := h.repo.QuickAdd(ctx, req.Text, h.now())
	h.metrics.RecordFragment(ctx, parsed.DueAt != nil, string(parsed.Priority))
	if err != nil {
		h.fail(ctx, w, r, start, "failed to create task", err)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.metrics.RecordMutation(ctx, "quick_add")
	h.logger.InfoContext(ctx, "task created from fragment",
		slog.String("id", task.ID),
		slog.Bool("has_due", task.DueAt != nil),
		slog.Int("tags", len(task.Tags)),
	)

	h.respond(ctx, w, r, start, http.StatusCreated, task)
}

// Parse previews what a fragment would produce without creating anything.
func (h *TaskHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.Parse")
	defer span.End()

	var req fragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	result := parser.Parse(req.Text, h.now())
	h.metrics.RecordFragment(ctx, result.DueAt != nil, string(result.Priority))

	h.respond(ctx, w, r, start, http.StatusOK, result)
}

// GetByID returns a task by ID.
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.GetByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to get task", err)
		return
	}

	h.respond(ctx, w, r, start, http.StatusOK, task)
}

// Update modifies an existing task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req model.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	h.logger.InfoContext(ctx, "updating task", slog.String("id", id))

	task, err := h.repo.Update(ctx, id, &req)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to update task", err)
		return
	}

	h.metrics.RecordMutation(ctx, "update")
	h.logger.InfoContext(ctx, "task updated", slog.String("id", id))

	h.respond(ctx, w, r, start, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := h.repo.Delete(ctx, id); err != nil {
		h.fail(ctx, w, r, start, "failed to delete task", err)
		return
	}

	h.metrics.RecordMutation(ctx, "delete")
	h.logger.InfoContext(ctx, "task deleted", slog.String("id", id))

	h.respond(ctx, w, r, start, http.StatusNoContent, nil)
}

// BulkDelete removes every listed task; unknown IDs are ignored.
func (h *TaskHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.BulkDelete")
	defer span.End()

	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	removed, err := h.repo.DeleteMany(ctx, req.IDs)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to delete tasks", err)
		return
	}

	span.SetAttributes(attribute.Int("task.removed", removed))
	if removed > 0 {
		h.metrics.RecordMutation(ctx, "bulk_delete")
	}
	h.logger.InfoContext(ctx, "tasks deleted", slog.Int("requested", len(req.IDs)), slog.Int("removed", removed))

	h.respond(ctx, w, r, start, http.StatusOK, map[string]int{"deleted": removed})
}

// ToggleComplete marks an open task done or reopens a done one.
func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	h.mutateOne(w, r, "TaskHandler.ToggleComplete", "toggle_complete", func(ctx context.Context, id string) (*model.Task, error) {
		return h.repo.ToggleComplete(ctx, id, h.now())
	})
}

func (h *TaskHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	h.mutateOne(w, r, "TaskHandler.ToggleStar", "toggle_star", h.repo.ToggleStar)
}

// Reorder swaps the custom order of the task with the target's.
func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.Reorder",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	tasks, err := h.repo.Reorder(ctx, id, req.TargetID)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to reorder tasks", err)
		return
	}

	h.metrics.RecordMutation(ctx, "reorder")
	h.logger.InfoContext(ctx, "tasks reordered", slog.String("id", id), slog.String("target_id", req.TargetID))

	h.respond(ctx, w, r, start, http.StatusOK, tasks)
}

func (h *TaskHandler) AddSubtask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.AddSubtask",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	var req subtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	task, err := h.repo.AddSubtask(ctx, id, req.Title)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to add subtask", err)
		return
	}

	h.metrics.RecordMutation(ctx, "add_subtask")
	h.respond(ctx, w, r, start, http.StatusCreated, task)
}

func (h *TaskHandler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subID")
	h.mutateOne(w, r, "TaskHandler.ToggleSubtask", "toggle_subtask", func(ctx context.Context, id string) (*model.Task, error) {
		return h.repo.ToggleSubtask(ctx, id, subID)
	})
}

func (h *TaskHandler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	subID := chi.URLParam(r, "subID")
	h.mutateOne(w, r, "TaskHandler.DeleteSubtask", "delete_subtask", func(ctx context.Context, id string) (*model.Task, error) {
		return h.repo.DeleteSubtask(ctx, id, subID)
	})
}

// mutateOne serves the body-less single-task mutations.
func (h *TaskHandler) mutateOne(w http.ResponseWriter, r *http.Request, spanName, op string, fn func(ctx context.Context, id string) (*model.Task, error)) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	task, err := fn(ctx, id)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to update task", err)
		return
	}

	h.metrics.RecordMutation(ctx, op)
	h.logger.InfoContext(ctx, "task updated", slog.String("id", id), slog.String("op", op))

	h.respond(ctx, w, r, start, http.StatusOK, task)
}
