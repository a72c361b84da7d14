// Package settings holds the user's display and reminder preferences.
package settings

import (
	"golang.org/x/text/language"

	"github.com/hiroki-koketsu/go-tasklist/internal/query"
)

// Settings is the fully resolved preference record.
type Settings struct {
	DefaultSort         query.SortKey `json:"defaultSort"`
	DefaultView         query.View    `json:"defaultView"`
	Theme               string        `json:"theme"`
	Accent              string        `json:"accent"`
	Density             string        `json:"density"`
	Notifications       bool          `json:"notifications"`
	ReminderLeadMinutes int           `json:"reminderLeadMinutes"`
	Locale              string        `json:"locale"`
}

// Stored is the persisted form. Any field may be missing from older or
// hand-edited records; nil means "use the default".
type Stored struct {
	DefaultSort         *query.SortKey `json:"defaultSort,omitempty"`
	DefaultView         *query.View    `json:"defaultView,omitempty"`
	Theme               *string        `json:"theme,omitempty"`
	Accent              *string        `json:"accent,omitempty"`
	Density             *string        `json:"density,omitempty"`
	Notifications       *bool          `json:"notifications,omitempty"`
	ReminderLeadMinutes *int           `json:"reminderLeadMinutes,omitempty"`
	Locale              *string        `json:"locale,omitempty"`
}

var (
	themes    = []string{"system", "light", "dark"}
	densities = []string{"comfortable", "compact"}
)

// Default returns the documented default settings.
func Default() Settings {
	return Settings{
		DefaultSort:         query.SortCustom,
		DefaultView:         query.ViewToday,
		Theme:               "system",
		Accent:              "indigo",
		Density:             "comfortable",
		Notifications:       false,
		ReminderLeadMinutes: 15,
		Locale:              "und",
	}
}

// Resolve defaults every field of s independently.
func Resolve(s Stored) Settings {
	return Apply(Default(), s)
}

// Apply overlays the non-nil, valid fields of patch onto current.
func Apply(current Settings, patch Stored) Settings {
	if patch.DefaultSort != nil && patch.DefaultSort.Valid() {
		current.DefaultSort = *patch.DefaultSort
	}
	if patch.DefaultView != nil && patch.DefaultView.Valid() {
		current.DefaultView = *patch.DefaultView
	}
	if patch.Theme != nil && oneOf(*patch.Theme, themes) {
		current.Theme = *patch.Theme
	}
	if patch.Accent != nil && *patch.Accent != "" {
		current.Accent = *patch.Accent
	}
	if patch.Density != nil && oneOf(*patch.Density, densities) {
		current.Density = *patch.Density
	}
	if patch.Notifications != nil {
		current.Notifications = *patch.Notifications
	}
	if patch.ReminderLeadMinutes != nil && *patch.ReminderLeadMinutes >= 0 {
		current.ReminderLeadMinutes = *patch.ReminderLeadMinutes
	}
	if patch.Locale != nil {
		if tag, err := language.Parse(*patch.Locale); err == nil {
			current.Locale = tag.String()
		}
	}
	return current
}

// Stored converts s to its persisted form with every field set.
func (s Settings) Stored() Stored {
	return Stored{
		DefaultSort:         &s.DefaultSort,
		DefaultView:         &s.DefaultView,
		Theme:               &s.Theme,
		Accent:              &s.Accent,
		Density:             &s.Density,
		Notifications:       &s.Notifications,
		ReminderLeadMinutes: &s.ReminderLeadMinutes,
		Locale:              &s.Locale,
	}
}

// QueryDefaults returns the values a list request falls back to.
func (s Settings) QueryDefaults() query.Defaults {
	return query.Defaults{View: s.DefaultView, Sort: s.DefaultSort, Locale: s.Locale}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
