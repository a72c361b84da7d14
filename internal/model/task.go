package model

import (
	"slices"
	"strings"
	"time"
)

// Priority is the closed set of task priorities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities for sorting: high(0) < medium(1) < low(2).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// ParsePriority accepts high, medium, med and low in any case.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "medium", "med":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return "", ErrInvalidPriority
}

// Task represents a todo item in the system.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DueAt       *time.Time `json:"dueAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags"`
	Subtasks    []Subtask  `json:"subtasks"`
	Order       float64    `json:"order"`
	Starred     bool       `json:"starred"`
}

// Subtask is a checklist entry owned by exactly one task.
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Completed reports whether the task has been marked done.
func (t Task) Completed() bool {
	return t.CompletedAt != nil
}

// HasTag reports whether the task carries tag, ignoring case like
// NormalizeTags does.
func (t Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}

// Progress returns the fraction of done subtasks, or 0 with none.
func (t Task) Progress() float64 {
	if len(t.Subtasks) == 0 {
		return 0
	}
	done := 0
	for _, s := range t.Subtasks {
		if s.Done {
			done++
		}
	}
	return float64(done) / float64(len(t.Subtasks))
}

// Clone returns a deep copy so callers can't mutate repository state.
func (t Task) Clone() Task {
	c := t
	if t.DueAt != nil {
		due := *t.DueAt
		c.DueAt = &due
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	// Empty stays empty, not nil; both must encode as [].
	c.Tags = slices.Clone(t.Tags)
	c.Subtasks = slices.Clone(t.Subtasks)
	return c
}

// Normalize repairs fields of a task loaded from storage or an import.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	if !t.Priority.Valid() {
		if p, err := ParsePriority(string(t.Priority)); err == nil {
			t.Priority = p
		} else {
			t.Priority = PriorityMedium
		}
	}
	t.Tags = NormalizeTags(t.Tags)
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}

// NormalizeTags trims tags, drops a leading '#', and removes empty and
// case-insensitive duplicate entries. The first spelling wins.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Subtasks    []string   `json:"subtasks,omitempty"`
	Starred     bool       `json:"starred,omitempty"`
}

// Validate checks if the CreateTaskRequest is valid.
func (r *CreateTaskRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// UpdateTaskRequest represents the request body for updating a task.
// Nil fields are left untouched.
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	ClearDueAt  bool       `json:"clearDueAt,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Starred     *bool      `json:"starred,omitempty"`
}

// Validate checks if the UpdateTaskRequest is valid.
func (r *UpdateTaskRequest) Validate() error {
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return ErrTitleRequired
	}
	if r.Priority != nil && !r.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

// TaskError represents a domain error for tasks.
type TaskError struct {
	Message string
}

func (e TaskError) Error() string {
	return e.Message
}

var (
	ErrTaskNotFound    = TaskError{Message: "task not found"}
	ErrSubtaskNotFound = TaskError{Message: "subtask not found"}
	ErrTitleRequired   = TaskError{Message: "title is required"}
	ErrInvalidPriority = TaskError{Message: "priority must be one of high, medium, low"}
)
