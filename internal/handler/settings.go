package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hiroki-koketsu/go-tasklist/internal/settings"
)

func (h *TaskHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.GetSettings")
	defer span.End()

	h.respond(ctx, w, r, start, http.StatusOK, h.settings.Get())
}

// UpdateSettings applies a partial settings record. Unknown or invalid
// values are ignored and the resolved settings are returned.
func (h *TaskHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.UpdateSettings")
	defer span.End()

	var patch settings.Stored
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	updated, err := h.settings.Update(ctx, patch)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to save settings", err)
		return
	}

	h.logger.InfoContext(ctx, "settings updated",
		slog.String("default_view", string(updated.DefaultView)),
		slog.String("default_sort", string(updated.DefaultSort)),
	)

	h.respond(ctx, w, r, start, http.StatusOK, updated)
}
