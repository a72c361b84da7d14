package query

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
)

var now = time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func ids(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

// fixture covers every view and bucket relative to now.
func fixture() []model.Task {
	return []model.Task{
		{ID: "overdue", Title: "File taxes", Priority: model.PriorityHigh, DueAt: ptr(now.Add(-48 * time.Hour)), Order: 5, CreatedAt: now.Add(-72 * time.Hour), Tags: []string{"money"}},
		{ID: "today", Title: "call mom", Priority: model.PriorityMedium, DueAt: ptr(now.Add(3 * time.Hour)), Order: 1, CreatedAt: now.Add(-1 * time.Hour), Tags: []string{"family"}},
		{ID: "tomorrow", Title: "Buy milk", Description: "two litres", Priority: model.PriorityLow, DueAt: ptr(now.Add(24 * time.Hour)), Order: 3, CreatedAt: now.Add(-3 * time.Hour), Starred: true},
		{ID: "later", Title: "Dentist", Priority: model.PriorityMedium, DueAt: ptr(now.AddDate(0, 0, 10)), Order: 2, CreatedAt: now.Add(-2 * time.Hour), Tags: []string{"health"}},
		{ID: "nodue", Title: "apples", Priority: model.PriorityHigh, Order: 4, CreatedAt: now.Add(-4 * time.Hour), Starred: true, Tags: []string{"family"}},
		{ID: "done", Title: "Old chore", Priority: model.PriorityLow, DueAt: ptr(now.Add(time.Hour)), CompletedAt: ptr(now.Add(-time.Hour)), Order: 0, CreatedAt: now.Add(-100 * time.Hour)},
	}
}

func TestApply_Views(t *testing.T) {
	tests := []struct {
		view View
		want []string
	}{
		{ViewToday, []string{"today"}},
		{ViewUpcoming, []string{"tomorrow"}},
		{ViewAll, []string{"today", "later", "tomorrow", "nodue", "overdue"}},
		{ViewStarred, []string{"tomorrow", "nodue"}},
		{ViewCompleted, []string{"done"}},
		{View("bogus"), []string{"today", "later", "tomorrow", "nodue", "overdue"}},
	}
	for _, tt := range tests {
		got := ids(Apply(fixture(), Spec{View: tt.view}, now))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("view %q: expected %v, got %v", tt.view, tt.want, got)
		}
	}
}

func TestApply_CompletedIgnoresDueDate(t *testing.T) {
	tasks := fixture()
	tasks = append(tasks, model.Task{ID: "done-nodue", Title: "x", CompletedAt: ptr(now), Order: 9})
	got := ids(Apply(tasks, Spec{View: ViewCompleted}, now))
	if !reflect.DeepEqual(got, []string{"done", "done-nodue"}) {
		t.Errorf("expected every completed task, got %v", got)
	}
}

func TestApply_Filters(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want []string
	}{
		{"tag", Spec{View: ViewAll, Tag: "family"}, []string{"today", "nodue"}},
		{"tag ignores case", Spec{View: ViewAll, Tag: "Family"}, []string{"today", "nodue"}},
		{"priority", Spec{View: ViewAll, Priorities: []model.Priority{model.PriorityHigh}}, []string{"nodue", "overdue"}},
		{"empty priority set is no filter", Spec{View: ViewAll, Priorities: []model.Priority{}}, []string{"today", "later", "tomorrow", "nodue", "overdue"}},
		{"due today", Spec{View: ViewAll, Due: DueToday}, []string{"today"}},
		{"due week", Spec{View: ViewAll, Due: DueWeek}, []string{"today", "tomorrow"}},
		{"due overdue", Spec{View: ViewAll, Due: DueOverdue}, []string{"overdue"}},
		{"unknown due bucket", Spec{View: ViewAll, Due: DueBucket("someday")}, []string{"today", "later", "tomorrow", "nodue", "overdue"}},
		{"search title", Spec{View: ViewAll, Search: "MILK"}, []string{"tomorrow"}},
		{"search description", Spec{View: ViewAll, Search: "litres"}, []string{"tomorrow"}},
		{"search tag", Spec{View: ViewAll, Search: "heal"}, []string{"later"}},
		{"blank search", Spec{View: ViewAll, Search: "   "}, []string{"today", "later", "tomorrow", "nodue", "overdue"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(fixture(), tt.spec, now))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApply_OverdueExcludesCompleted(t *testing.T) {
	got := ids(Apply(fixture(), Spec{View: ViewCompleted, Due: DueOverdue}, now))
	if len(got) != 0 {
		t.Errorf("expected no completed task to be overdue, got %v", got)
	}
}

func TestApply_FiltersAreMonotonic(t *testing.T) {
	base := Spec{View: ViewAll}
	baseLen := len(Apply(fixture(), base, now))

	narrowed := []Spec{
		{View: ViewAll, Tag: "family"},
		{View: ViewAll, Priorities: []model.Priority{model.PriorityMedium}},
		{View: ViewAll, Due: DueWeek},
		{View: ViewAll, Search: "a"},
		{View: ViewAll, Tag: "family", Priorities: []model.Priority{model.PriorityHigh}, Due: DueOverdue},
	}
	for _, spec := range narrowed {
		if n := len(Apply(fixture(), spec, now)); n > baseLen {
			t.Errorf("spec %+v returned %d tasks, more than unfiltered %d", spec, n, baseLen)
		}
	}

	withTag := len(Apply(fixture(), Spec{View: ViewAll, Tag: "family"}, now))
	withTagAndPriority := len(Apply(fixture(), Spec{View: ViewAll, Tag: "family", Priorities: []model.Priority{model.PriorityHigh}}, now))
	if withTagAndPriority > withTag {
		t.Errorf("adding a priority constraint grew the result: %d > %d", withTagAndPriority, withTag)
	}
}

func TestApply_Sorts(t *testing.T) {
	tests := []struct {
		sort SortKey
		want []string
	}{
		{SortCustom, []string{"today", "later", "tomorrow", "nodue", "overdue"}},
		{SortKey("random"), []string{"today", "later", "tomorrow", "nodue", "overdue"}},
		{SortDueDate, []string{"overdue", "today", "tomorrow", "later", "nodue"}},
		{SortPriority, []string{"overdue", "nodue", "today", "later", "tomorrow"}},
		{SortCreated, []string{"today", "later", "tomorrow", "nodue", "overdue"}},
		{SortAlpha, []string{"apples", "Buy milk", "call mom", "Dentist", "File taxes"}},
	}
	for _, tt := range tests {
		result := Apply(fixture(), Spec{View: ViewAll, Sort: tt.sort}, now)
		var got []string
		if tt.sort == SortAlpha {
			for _, task := range result {
				got = append(got, task.Title)
			}
		} else {
			got = ids(result)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("sort %q: expected %v, got %v", tt.sort, tt.want, got)
		}
	}
}

func TestApply_SortIsStable(t *testing.T) {
	due := ptr(now.Add(time.Hour))
	created := now.Add(-time.Hour)
	tasks := []model.Task{
		{ID: "a", Title: "Same", Priority: model.PriorityLow, DueAt: due, CreatedAt: created, Order: 1},
		{ID: "b", Title: "Same", Priority: model.PriorityLow, DueAt: due, CreatedAt: created, Order: 1},
		{ID: "c", Title: "Same", Priority: model.PriorityLow, DueAt: due, CreatedAt: created, Order: 1},
		{ID: "d", Title: "Same", Priority: model.PriorityLow, CreatedAt: created, Order: 1},
		{ID: "e", Title: "Same", Priority: model.PriorityLow, CreatedAt: created, Order: 1},
	}
	for _, key := range []SortKey{SortCustom, SortDueDate, SortPriority, SortCreated, SortAlpha} {
		got := ids(Apply(tasks, Spec{View: ViewAll, Sort: key}, now))
		if !reflect.DeepEqual(got, []string{"a", "b", "c", "d", "e"}) {
			t.Errorf("sort %q is not stable: %v", key, got)
		}
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	tasks := fixture()
	before := ids(tasks)
	Apply(tasks, Spec{View: ViewAll, Sort: SortAlpha}, now)
	if !reflect.DeepEqual(ids(tasks), before) {
		t.Errorf("input order changed")
	}
}

func TestApply_EmptyInput(t *testing.T) {
	got := Apply(nil, Spec{View: ViewToday}, now)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestParseSpec(t *testing.T) {
	values := url.Values{
		"tag":      {"#work"},
		"priority": {"high,low", "urgent", "med"},
		"due":      {"Overdue"},
		"q":        {"report"},
	}
	spec := ParseSpec(values, Defaults{View: ViewToday, Sort: SortPriority, Locale: "de"})

	if spec.View != ViewToday || spec.Sort != SortPriority {
		t.Errorf("expected defaults to fill view and sort, got %q/%q", spec.View, spec.Sort)
	}
	if spec.Tag != "work" {
		t.Errorf("expected tag without hash, got %q", spec.Tag)
	}
	want := []model.Priority{model.PriorityHigh, model.PriorityLow, model.PriorityMedium}
	if !reflect.DeepEqual(spec.Priorities, want) {
		t.Errorf("expected priorities %v, got %v", want, spec.Priorities)
	}
	if spec.Due != DueOverdue || spec.Search != "report" || spec.Locale != "de" {
		t.Errorf("unexpected spec: %+v", spec)
	}

	spec = ParseSpec(url.Values{"view": {"completed"}, "sort": {"alpha"}}, Defaults{View: ViewToday, Sort: SortCustom})
	if spec.View != ViewCompleted || spec.Sort != SortAlpha {
		t.Errorf("expected explicit values to override defaults, got %+v", spec)
	}
}
