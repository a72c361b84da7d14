package parser

import (
	"reflect"
	"testing"
	"time"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
)

var now = time.Date(2026, 10, 17, 14, 30, 45, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 10, day, hour, minute, 0, 0, time.UTC)
}

func TestParse_TodayTagAndPriority(t *testing.T) {
	got := Parse("Call doctor today #health !high", now)

	if got.Title != "Call doctor" {
		t.Errorf("expected title %q, got %q", "Call doctor", got.Title)
	}
	if got.Priority != model.PriorityHigh {
		t.Errorf("expected high priority, got %q", got.Priority)
	}
	if !reflect.DeepEqual(got.Tags, []string{"health"}) {
		t.Errorf("expected tags [health], got %v", got.Tags)
	}
	if got.DueAt == nil || !got.DueAt.Equal(at(17, 23, 59)) {
		t.Errorf("expected due today 23:59, got %v", got.DueAt)
	}
}

func TestParse_TomorrowWithTime(t *testing.T) {
	got := Parse("Meeting tomorrow 9am", now)

	if got.Title != "Meeting" {
		t.Errorf("expected title %q, got %q", "Meeting", got.Title)
	}
	if got.DueAt == nil || !got.DueAt.Equal(at(18, 9, 0)) {
		t.Errorf("expected due tomorrow 09:00, got %v", got.DueAt)
	}
	if got.Priority != model.PriorityMedium {
		t.Errorf("expected default medium priority, got %q", got.Priority)
	}
}

func TestParse_NextWeekKeepsClockTime(t *testing.T) {
	got := Parse("Review report next week #work", now)

	if got.Title != "Review report" {
		t.Errorf("expected title %q, got %q", "Review report", got.Title)
	}
	if !reflect.DeepEqual(got.Tags, []string{"work"}) {
		t.Errorf("expected tags [work], got %v", got.Tags)
	}
	if got.DueAt == nil || !got.DueAt.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("expected due now+7d, got %v", got.DueAt)
	}
}

func TestParse_TimeConversion(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Standup today 2:30pm", at(17, 14, 30)},
		{"Call tomorrow 12am", at(18, 0, 0)},
		{"Lunch tomorrow 12pm", at(18, 12, 0)},
		{"Meet TOMORROW 9 AM", at(18, 9, 0)},
		{"Report next week 5pm", at(24, 17, 0)},
	}
	for _, tt := range tests {
		got := Parse(tt.in, now)
		if got.DueAt == nil || !got.DueAt.Equal(tt.want) {
			t.Errorf("Parse(%q): expected due %v, got %v", tt.in, tt.want, got.DueAt)
		}
	}
}

func TestParse_PriorityLastMarkerWins(t *testing.T) {
	got := Parse("!low thing !high", now)
	if got.Priority != model.PriorityLow {
		t.Errorf("expected low (checked last), got %q", got.Priority)
	}
	if got.Title != "thing" {
		t.Errorf("expected both markers stripped, got %q", got.Title)
	}

	got = Parse("Pay rent !MED", now)
	if got.Priority != model.PriorityMedium || got.Title != "Pay rent" {
		t.Errorf("unexpected result: %+v", got)
	}

	got = Parse("Visit !highlands", now)
	if got.Priority != model.PriorityMedium || got.Title != "Visit !highlands" {
		t.Errorf("expected partial word marker to be ignored, got %+v", got)
	}
}

func TestParse_TimeWithoutDateStaysInTitle(t *testing.T) {
	got := Parse("Lunch at 12pm", now)
	if got.DueAt != nil {
		t.Errorf("expected no due date, got %v", got.DueAt)
	}
	if got.Title != "Lunch at 12pm" {
		t.Errorf("expected title untouched, got %q", got.Title)
	}
}

func TestParse_FirstDateKeywordWins(t *testing.T) {
	got := Parse("today or tomorrow", now)
	if got.DueAt == nil || !got.DueAt.Equal(at(17, 23, 59)) {
		t.Errorf("expected today to win, got %v", got.DueAt)
	}
	if got.Title != "or tomorrow" {
		t.Errorf("expected later keyword left in title, got %q", got.Title)
	}
}

// Only one date keyword is consumed per parse. Whatever the removal leaves
// behind, even a phrase it joins up, stays in the title and is a hint again
// on the next parse.
func TestParse_LeftoverDateWordsStayInTitle(t *testing.T) {
	got := Parse("next today week", now)
	if got.DueAt == nil || !got.DueAt.Equal(at(17, 23, 59)) {
		t.Errorf("expected today to be applied, got %v", got.DueAt)
	}
	if got.Title != "next week" {
		t.Errorf("expected joined words left in title, got %q", got.Title)
	}

	again := Parse(got.Title, now)
	if again.Title != "" || again.DueAt == nil || !again.DueAt.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("expected leftover phrase to parse as next week, got %+v", again)
	}
}

func TestParse_InvalidHourLeftInTitle(t *testing.T) {
	got := Parse("Gym today 13pm", now)
	if got.DueAt == nil || !got.DueAt.Equal(at(17, 23, 59)) {
		t.Errorf("expected due date untouched, got %v", got.DueAt)
	}
	if got.Title != "Gym 13pm" {
		t.Errorf("expected invalid time kept, got %q", got.Title)
	}
}

func TestParse_TagsInOrder(t *testing.T) {
	got := Parse("#Home fix #sink_2 leak", now)
	if !reflect.DeepEqual(got.Tags, []string{"Home", "sink_2"}) {
		t.Errorf("expected tags in order with case kept, got %v", got.Tags)
	}
	if got.Title != "fix leak" {
		t.Errorf("expected %q, got %q", "fix leak", got.Title)
	}
}

func TestParse_PlainTextUntouched(t *testing.T) {
	got := Parse("Water the plants", now)
	if got.Title != "Water the plants" || got.DueAt != nil || len(got.Tags) != 0 || got.Priority != model.PriorityMedium {
		t.Errorf("unexpected result: %+v", got)
	}
	if got.Tags == nil {
		t.Errorf("expected empty, non-nil tags")
	}
}

func TestParse_EmptyInput(t *testing.T) {
	got := Parse("   ", now)
	if got.Title != "" || got.DueAt != nil {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestParse_TitleIsStable(t *testing.T) {
	inputs := []string{
		"Call doctor today #health !high",
		"Meeting tomorrow 9am",
		"Review report next week #work",
		"  spaced    out   words ",
		"Lunch at 12pm",
		"Visit !highlands",
		"email # bob",
	}
	for _, in := range inputs {
		first := Parse(in, now).Title
		second := Parse(first, now).Title
		if first != second {
			t.Errorf("Parse(%q): re-parsing title %q gave %q", in, first, second)
		}
	}
}
