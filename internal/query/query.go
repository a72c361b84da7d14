// Package query filters and orders a task collection for display.
package query

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
)

// View is a predefined bucket over the collection.
type View string

const (
	ViewToday     View = "today"
	ViewUpcoming  View = "upcoming"
	ViewAll       View = "all"
	ViewStarred   View = "starred"
	ViewCompleted View = "completed"
)

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case ViewToday, ViewUpcoming, ViewAll, ViewStarred, ViewCompleted:
		return true
	}
	return false
}

// DueBucket constrains the due date independently of the view.
type DueBucket string

const (
	DueAny     DueBucket = ""
	DueToday   DueBucket = "today"
	DueWeek    DueBucket = "week"
	DueOverdue DueBucket = "overdue"
)

// SortKey selects the ordering applied after filtering.
type SortKey string

const (
	SortCustom   SortKey = "custom"
	SortDueDate  SortKey = "dueDate"
	SortPriority SortKey = "priority"
	SortCreated  SortKey = "created"
	SortAlpha    SortKey = "alpha"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortCustom, SortDueDate, SortPriority, SortCreated, SortAlpha:
		return true
	}
	return false
}

// Spec describes one query over the collection. Zero values mean no filter.
type Spec struct {
	View       View
	Tag        string
	Priorities []model.Priority
	Due        DueBucket
	Search     string
	Sort       SortKey
	// Locale is a BCP 47 tag used for alpha sorting.
	Locale string
}

// Defaults supplies the view and sort used when a request leaves them out.
type Defaults struct {
	View   View
	Sort   SortKey
	Locale string
}

// ParseSpec builds a Spec from URL query parameters:
// view, tag, priority (repeatable or comma separated), due, q and sort.
func ParseSpec(values url.Values, defaults Defaults) Spec {
	spec := Spec{
		View:   View(strings.TrimSpace(values.Get("view"))),
		Tag:    strings.TrimPrefix(strings.TrimSpace(values.Get("tag")), "#"),
		Due:    DueBucket(strings.ToLower(strings.TrimSpace(values.Get("due")))),
		Search: values.Get("q"),
		Sort:   SortKey(strings.TrimSpace(values.Get("sort"))),
		Locale: defaults.Locale,
	}
	if spec.View == "" {
		spec.View = defaults.View
	}
	if spec.Sort == "" {
		spec.Sort = defaults.Sort
	}

	for _, raw := range values["priority"] {
		for _, part := range strings.Split(raw, ",") {
			if p, err := model.ParsePriority(part); err == nil {
				spec.Priorities = append(spec.Priorities, p)
			}
		}
	}
	return spec
}

type window struct {
	startOfToday    time.Time
	startOfTomorrow time.Time
	endOfWeek       time.Time
	now             time.Time
}

func newWindow(now time.Time) window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return window{
		startOfToday:    start,
		startOfTomorrow: start.AddDate(0, 0, 1),
		endOfWeek:       start.AddDate(0, 0, 7),
		now:             now,
	}
}

func within(t *time.Time, from, to time.Time) bool {
	return t != nil && !t.Before(from) && t.Before(to)
}

type predicate func(model.Task) bool

// Apply runs view, tag, priority, due bucket and search filters in that
// order, then sorts stably. The input slice is never modified.
func Apply(tasks []model.Task, spec Spec, now time.Time) []model.Task {
	w := newWindow(now)
	stages := []predicate{
		viewFilter(spec.View, w),
		tagFilter(spec.Tag),
		priorityFilter(spec.Priorities),
		dueFilter(spec.Due, w),
		searchFilter(spec.Search),
	}

	result := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if matchesAll(task, stages) {
			result = append(result, task)
		}
	}

	sortTasks(result, spec.Sort, spec.Locale)
	return result
}

func matchesAll(task model.Task, stages []predicate) bool {
	for _, keep := range stages {
		if keep != nil && !keep(task) {
			return false
		}
	}
	return true
}

func viewFilter(view View, w window) predicate {
	switch view {
	case ViewToday:
		return func(t model.Task) bool {
			return !t.Completed() && within(t.DueAt, w.startOfToday, w.startOfTomorrow)
		}
	case ViewUpcoming:
		return func(t model.Task) bool {
			return !t.Completed() && within(t.DueAt, w.startOfTomorrow, w.endOfWeek)
		}
	case ViewStarred:
		return func(t model.Task) bool { return !t.Completed() && t.Starred }
	case ViewCompleted:
		return func(t model.Task) bool { return t.Completed() }
	default:
		return func(t model.Task) bool { return !t.Completed() }
	}
}

func tagFilter(tag string) predicate {
	if tag == "" {
		return nil
	}
	return func(t model.Task) bool { return t.HasTag(tag) }
}

func priorityFilter(priorities []model.Priority) predicate {
	if len(priorities) == 0 {
		return nil
	}
	allowed := make(map[model.Priority]struct{}, len(priorities))
	for _, p := range priorities {
		allowed[p] = struct{}{}
	}
	return func(t model.Task) bool {
		_, ok := allowed[t.Priority]
		return ok
	}
}

func dueFilter(bucket DueBucket, w window) predicate {
	switch bucket {
	case DueToday:
		return func(t model.Task) bool { return within(t.DueAt, w.startOfToday, w.startOfTomorrow) }
	case DueWeek:
		return func(t model.Task) bool { return within(t.DueAt, w.startOfToday, w.endOfWeek) }
	case DueOverdue:
		return func(t model.Task) bool {
			return !t.Completed() && t.DueAt != nil && t.DueAt.Before(w.now)
		}
	default:
		return nil
	}
}

func searchFilter(search string) predicate {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return nil
	}
	return func(t model.Task) bool {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			return true
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), needle) {
				return true
			}
		}
		return false
	}
}

func sortTasks(tasks []model.Task, key SortKey, locale string) {
	var less func(a, b model.Task) bool
	switch key {
	case SortDueDate:
		less = func(a, b model.Task) bool {
			if a.DueAt == nil || b.DueAt == nil {
				return a.DueAt != nil && b.DueAt == nil
			}
			return a.DueAt.Before(*b.DueAt)
		}
	case SortPriority:
		less = func(a, b model.Task) bool { return a.Priority.Rank() < b.Priority.Rank() }
	case SortCreated:
		less = func(a, b model.Task) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortAlpha:
		c := collate.New(localeTag(locale))
		less = func(a, b model.Task) bool { return c.CompareString(a.Title, b.Title) < 0 }
	default:
		less = func(a, b model.Task) bool { return a.Order < b.Order }
	}

	sort.SliceStable(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
}

func localeTag(locale string) language.Tag {
	if locale == "" {
		return language.Und
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und
	}
	return tag
}
