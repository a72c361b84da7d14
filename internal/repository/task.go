package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
	"github.com/hiroki-koketsu/go-tasklist/internal/parser"
	"github.com/hiroki-koketsu/go-tasklist/internal/query"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-tasklist/internal/repository")

// TaskPersister receives the whole collection after every mutation.
type TaskPersister interface {
	SaveTasks(ctx context.Context, tasks []model.Task) error
}

// TaskRepository owns the live task list. Tasks are kept in insertion
// order so stable sorts preserve it.
type TaskRepository struct {
	mu    sync.RWMutex
	tasks []model.Task
	store TaskPersister
}

// NewTaskRepository creates a repository seeded with tasks, typically the
// collection loaded at startup.
func NewTaskRepository(store TaskPersister, tasks []model.Task) *TaskRepository {
	seeded := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		seeded = append(seeded, t.Clone())
	}
	return &TaskRepository{tasks: seeded, store: store}
}

// Create adds a new task to the repository.
func (r *TaskRepository) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Create",
		trace.WithAttributes(attribute.String("task.title", req.Title)),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	task := model.Task{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Priority:    priority,
		Tags:        model.NormalizeTags(req.Tags),
		Subtasks:    []model.Subtask{},
		Order:       r.nextOrder(),
		Starred:     req.Starred,
	}
	if req.DueAt != nil {
		due := *req.DueAt
		task.DueAt = &due
	}
	for _, title := range req.Subtasks {
		if title = strings.TrimSpace(title); title != "" {
			task.Subtasks = append(task.Subtasks, model.Subtask{ID: uuid.New().String(), Title: title})
		}
	}

	r.tasks = append(r.tasks, task)
	if err := r.persist(ctx); err != nil {
		r.tasks = r.tasks[:len(r.tasks)-1]
		return nil, err
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	return cloned(task), nil
}

// QuickAdd parses a quick-entry fragment and creates the task it describes.
func (r *TaskRepository) QuickAdd(ctx context.Context, text string, now time.Time) (*model.Task, parser.Result, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.QuickAdd")
	defer span.End()

	parsed := parser.Parse(text, now)
	span.SetAttributes(
		attribute.Bool("fragment.has_due", parsed.DueAt != nil),
		attribute.String("fragment.priority", string(parsed.Priority)),
		attribute.Int("fragment.tags", len(parsed.Tags)),
	)
	if parsed.Title == "" {
		return nil, parsed, model.ErrTitleRequired
	}

	task, err := r.Create(ctx, &model.CreateTaskRequest{
		Title:    parsed.Title,
		DueAt:    parsed.DueAt,
		Priority: parsed.Priority,
		Tags:     parsed.Tags,
	})
	return task, parsed, err
}

// GetByID retrieves a task by its ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.GetByID",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return cloned(r.tasks[i]), nil
}

// List returns a copy of every task in insertion order.
func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	_, span := tracer.Start(ctx, "TaskRepository.List")
	defer span.End()

	tasks := r.snapshot()
	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// Query runs the filter and sort pipeline over a snapshot of the list.
func (r *TaskRepository) Query(ctx context.Context, spec query.Spec, now time.Time) []model.Task {
	_, span := tracer.Start(ctx, "TaskRepository.Query",
		trace.WithAttributes(
			attribute.String("query.view", string(spec.View)),
			attribute.String("query.sort", string(spec.Sort)),
		),
	)
	defer span.End()

	result := query.Apply(r.snapshot(), spec, now)
	span.SetAttributes(attribute.Int("task.count", len(result)))
	return result
}

// Update modifies an existing task.
func (r *TaskRepository) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return r.mutate(ctx, "TaskRepository.Update", id, func(task *model.Task) error {
		if req.Title != nil {
			task.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.ClearDueAt {
			task.DueAt = nil
		} else if req.DueAt != nil {
			due := *req.DueAt
			task.DueAt = &due
		}
		if req.Priority != nil {
			task.Priority = *req.Priority
		}
		if req.Tags != nil {
			task.Tags = model.NormalizeTags(*req.Tags)
		}
		if req.Starred != nil {
			task.Starred = *req.Starred
		}
		return nil
	})
}

// ToggleComplete sets completedAt when the task is open and clears it when
// the task is done. Nothing else changes.
func (r *TaskRepository) ToggleComplete(ctx context.Context, id string, now time.Time) (*model.Task, error) {
	return r.mutate(ctx, "TaskRepository.ToggleComplete", id, func(task *model.Task) error {
		if task.CompletedAt != nil {
			task.CompletedAt = nil
			return nil
		}
		completed := now
		task.CompletedAt = &completed
		return nil
	})
}

func (r *TaskRepository) ToggleStar(ctx context.Context, id string) (*model.Task, error) {
	return r.mutate(ctx, "TaskRepository.ToggleStar", id, func(task *model.Task) error {
		task.Starred = !task.Starred
		return nil
	})
}

// AddSubtask appends a checklist entry to the task.
func (r *TaskRepository) AddSubtask(ctx context.Context, id, title string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, model.ErrTitleRequired
	}
	return r.mutate(ctx, "TaskRepository.AddSubtask", id, func(task *model.Task) error {
		task.Subtasks = append(task.Subtasks, model.Subtask{ID: uuid.New().String(), Title: title})
		return nil
	})
}

func (r *TaskRepository) ToggleSubtask(ctx context.Context, id, subtaskID string) (*model.Task, error) {
	return r.mutate(ctx, "TaskRepository.ToggleSubtask", id, func(task *model.Task) error {
		for i := range task.Subtasks {
			if task.Subtasks[i].ID == subtaskID {
				task.Subtasks[i].Done = !task.Subtasks[i].Done
				return nil
			}
		}
		return model.ErrSubtaskNotFound
	})
}

func (r *TaskRepository) DeleteSubtask(ctx context.Context, id, subtaskID string) (*model.Task, error) {
	return r.mutate(ctx, "TaskRepository.DeleteSubtask", id, func(task *model.Task) error {
		for i := range task.Subtasks {
			if task.Subtasks[i].ID == subtaskID {
				task.Subtasks = append(task.Subtasks[:i:i], task.Subtasks[i+1:]...)
				return nil
			}
		}
		return model.ErrSubtaskNotFound
	})
}

// Reorder moves source onto target by swapping their order values. Other
// tasks are untouched, so repeated swaps can leave duplicate or
// non-monotonic orders across the collection.
func (r *TaskRepository) Reorder(ctx context.Context, sourceID, targetID string) ([]model.Task, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Reorder",
		trace.WithAttributes(
			attribute.String("task.id", sourceID),
			attribute.String("task.target_id", targetID),
		),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	si, ti := r.indexOf(sourceID), r.indexOf(targetID)
	if si < 0 || ti < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}
	if si == ti {
		return []model.Task{r.tasks[si].Clone()}, nil
	}

	before := []model.Task{r.tasks[si], r.tasks[ti]}
	now := time.Now()
	r.tasks[si].Order, r.tasks[ti].Order = r.tasks[ti].Order, r.tasks[si].Order
	r.tasks[si].UpdatedAt = now
	r.tasks[ti].UpdatedAt = now

	if err := r.persist(ctx); err != nil {
		r.tasks[si], r.tasks[ti] = before[0], before[1]
		return nil, err
	}
	return []model.Task{r.tasks[si].Clone(), r.tasks[ti].Clone()}, nil
}

// Delete removes a task from the repository.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TaskRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return model.ErrTaskNotFound
	}

	previous := r.tasks
	r.tasks = append(append(make([]model.Task, 0, len(r.tasks)-1), r.tasks[:i]...), r.tasks[i+1:]...)
	if err := r.persist(ctx); err != nil {
		r.tasks = previous
		return err
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return nil
}

// DeleteMany removes every listed task and reports how many existed.
// Unknown IDs are ignored.
func (r *TaskRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.DeleteMany",
		trace.WithAttributes(attribute.Int("task.requested", len(ids))),
	)
	defer span.End()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if _, ok := drop[t.ID]; !ok {
			kept = append(kept, t)
		}
	}
	removed := len(r.tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	previous := r.tasks
	r.tasks = kept
	if err := r.persist(ctx); err != nil {
		r.tasks = previous
		return 0, err
	}

	span.SetAttributes(attribute.Int("task.removed", removed))
	return removed, nil
}

// Merge appends imported tasks whose IDs are not already present.
// Merged tasks get a fresh updatedAt.
func (r *TaskRepository) Merge(ctx context.Context, incoming []model.Task, now time.Time) (added, skipped int, err error) {
	ctx, span := tracer.Start(ctx, "TaskRepository.Merge",
		trace.WithAttributes(attribute.Int("task.incoming", len(incoming))),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := make(map[string]struct{}, len(r.tasks)+len(incoming))
	for _, t := range r.tasks {
		existing[t.ID] = struct{}{}
	}

	previous := r.tasks
	merged := append(make([]model.Task, 0, len(r.tasks)+len(incoming)), r.tasks...)
	for _, t := range incoming {
		if _, ok := existing[t.ID]; ok {
			skipped++
			continue
		}
		existing[t.ID] = struct{}{}
		t = t.Clone()
		t.UpdatedAt = now
		merged = append(merged, t)
		added++
	}
	if added == 0 {
		return 0, skipped, nil
	}

	r.tasks = merged
	if perr := r.persist(ctx); perr != nil {
		r.tasks = previous
		return 0, 0, perr
	}

	span.SetAttributes(attribute.Int("task.added", added), attribute.Int("task.skipped", skipped))
	return added, skipped, nil
}

// Count returns the current number of tasks.
func (r *TaskRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tasks))
}

// OpenCount returns the number of tasks not yet completed.
func (r *TaskRepository) OpenCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.tasks {
		if !t.Completed() {
			n++
		}
	}
	return n
}

// mutate applies fn to one task under the write lock, refreshes updatedAt
// and persists. The task is restored if fn or persistence fails.
func (r *TaskRepository) mutate(ctx context.Context, spanName, id string, fn func(*model.Task) error) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, model.ErrTaskNotFound
	}
	span.SetAttributes(attribute.Bool("task.found", true))

	before := r.tasks[i]
	working := before.Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()

	r.tasks[i] = working
	if err := r.persist(ctx); err != nil {
		r.tasks[i] = before
		return nil, err
	}
	return cloned(working), nil
}

func (r *TaskRepository) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveTasks(ctx, r.tasks); err != nil {
		return fmt.Errorf("persist tasks: %w", err)
	}
	return nil
}

func (r *TaskRepository) snapshot() []model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Clone())
	}
	return out
}

func (r *TaskRepository) indexOf(id string) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *TaskRepository) nextOrder() float64 {
	var highest float64
	for _, t := range r.tasks {
		if t.Order > highest {
			highest = t.Order
		}
	}
	return highest + 1
}

func cloned(t model.Task) *model.Task {
	c := t.Clone()
	return &c
}
