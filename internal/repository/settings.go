package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hiroki-koketsu/go-tasklist/internal/settings"
)

// SettingsPersister receives the resolved settings after every update.
type SettingsPersister interface {
	SaveSettings(ctx context.Context, s settings.Settings) error
}

// SettingsRepository holds the current preference record.
type SettingsRepository struct {
	mu      sync.RWMutex
	current settings.Settings
	store   SettingsPersister
}

func NewSettingsRepository(store SettingsPersister, initial settings.Settings) *SettingsRepository {
	return &SettingsRepository{current: initial, store: store}
}

func (r *SettingsRepository) Get() settings.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Update overlays patch on the current settings and persists the result.
// Invalid fields in patch are ignored.
func (r *SettingsRepository) Update(ctx context.Context, patch settings.Stored) (settings.Settings, error) {
	ctx, span := tracer.Start(ctx, "SettingsRepository.Update")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	next := settings.Apply(r.current, patch)
	if r.store != nil {
		if err := r.store.SaveSettings(ctx, next); err != nil {
			return r.current, fmt.Errorf("persist settings: %w", err)
		}
	}
	r.current = next
	return next, nil
}
