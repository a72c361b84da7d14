// Package parser extracts due date, priority and tags from a quick-entry
// line of free text such as "Call doctor today #health !high".
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
)

// Result is the cleaned title plus every hint found in the fragment.
type Result struct {
	Title    string         `json:"title"`
	DueAt    *time.Time     `json:"dueAt,omitempty"`
	Priority model.Priority `json:"priority"`
	Tags     []string       `json:"tags"`
}

// rule consumes part of the working text and records what it found in acc.
type rule func(text string, now time.Time, acc Result) (string, Result)

// Precedence matters: each rule sees the text left over by the previous one.
var rules = []rule{
	extractPriority,
	extractTags,
	extractRelativeDate,
	extractTimeOfDay,
}

var (
	priorityMarkers = []struct {
		re       *regexp.Regexp
		priority model.Priority
	}{
		{regexp.MustCompile(`(?i)!high\b`), model.PriorityHigh},
		{regexp.MustCompile(`(?i)!med(?:ium)?\b`), model.PriorityMedium},
		{regexp.MustCompile(`(?i)!low\b`), model.PriorityLow},
	}

	tagPattern = regexp.MustCompile(`#(\w+)`)

	relativeDates = []struct {
		re      *regexp.Regexp
		resolve func(now time.Time) time.Time
	}{
		{regexp.MustCompile(`(?i)\btoday\b`), func(now time.Time) time.Time {
			return atClock(now, 23, 59)
		}},
		{regexp.MustCompile(`(?i)\btomorrow\b`), func(now time.Time) time.Time {
			return atClock(now.AddDate(0, 0, 1), 9, 0)
		}},
		{regexp.MustCompile(`(?i)\bnext\s+week\b`), func(now time.Time) time.Time {
			return now.AddDate(0, 0, 7)
		}},
	}

	timeOfDayPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	extraSpace       = regexp.MustCompile(`\s{2,}`)
)

// Parse never fails. Unrecognised phrases stay in the title, and a fragment
// with no hints comes back as its own title with medium priority.
func Parse(text string, now time.Time) Result {
	acc := Result{Priority: model.PriorityMedium, Tags: []string{}}
	for _, r := range rules {
		text, acc = r(text, now, acc)
	}
	acc.Title = strings.TrimSpace(extraSpace.ReplaceAllString(text, " "))
	return acc
}

// extractPriority checks high, then medium, then low; the last marker
// present wins.
func extractPriority(text string, _ time.Time, acc Result) (string, Result) {
	for _, m := range priorityMarkers {
		if m.re.MatchString(text) {
			acc.Priority = m.priority
			text = m.re.ReplaceAllString(text, "")
		}
	}
	return text, acc
}

func extractTags(text string, _ time.Time, acc Result) (string, Result) {
	for _, match := range tagPattern.FindAllStringSubmatch(text, -1) {
		acc.Tags = append(acc.Tags, match[1])
	}
	return tagPattern.ReplaceAllString(text, ""), acc
}

// extractRelativeDate applies only the first keyword that matches. Later
// keywords, including one joined up by the removal, stay in the title.
func extractRelativeDate(text string, now time.Time, acc Result) (string, Result) {
	for _, d := range relativeDates {
		if d.re.MatchString(text) {
			due := d.resolve(now)
			acc.DueAt = &due
			return d.re.ReplaceAllString(text, ""), acc
		}
	}
	return text, acc
}

// extractTimeOfDay refines a date found earlier; a bare time with no date
// is left in the title.
func extractTimeOfDay(text string, _ time.Time, acc Result) (string, Result) {
	if acc.DueAt == nil {
		return text, acc
	}
	for _, loc := range timeOfDayPattern.FindAllStringSubmatchIndex(text, -1) {
		hour, _ := strconv.Atoi(text[loc[2]:loc[3]])
		minute := 0
		if loc[4] >= 0 {
			minute, _ = strconv.Atoi(text[loc[4]:loc[5]])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			continue
		}

		pm := strings.EqualFold(text[loc[6]:loc[7]], "pm")
		switch {
		case pm && hour != 12:
			hour += 12
		case !pm && hour == 12:
			hour = 0
		}

		due := atClock(*acc.DueAt, hour, minute)
		acc.DueAt = &due
		return text[:loc[0]] + text[loc[1]:], acc
	}
	return text, acc
}

func atClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}
