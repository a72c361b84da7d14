package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hiroki-koketsu/go-tasklist/internal/transfer"
)

const maxImportBytes = 10 << 20

func (h *TaskHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.ExportJSON")
	defer span.End()

	tasks, err := h.repo.List(ctx)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to export tasks", err)
		return
	}

	now := h.now()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(now, "json"))
	if err := transfer.WriteJSON(w, tasks, h.settings.Get(), now); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export", slog.Any("error", err))
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.recordMetrics(ctx, r, http.StatusOK, start)
}

func (h *TaskHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.ExportCSV")
	defer span.End()

	tasks, err := h.repo.List(ctx)
	if err != nil {
		h.fail(ctx, w, r, start, "failed to export tasks", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(h.now(), "csv"))
	if err := transfer.WriteCSV(w, tasks); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export", slog.Any("error", err))
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.recordMetrics(ctx, r, http.StatusOK, start)
}

// Import merges an uploaded export into the collection. Tasks whose IDs
// already exist are skipped; an unreadable file imports nothing.
func (h *TaskHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.Import")
	defer span.End()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.badRequest(ctx, w, r, start, err)
		return
	}

	incoming, err := transfer.DecodeImport(data)
	if err != nil {
		h.logger.WarnContext(ctx, "rejected import", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, transfer.ErrInvalidImport.Error())
		h.recordMetrics(ctx, r, http.StatusBadRequest, start)
		return
	}

	added, skipped, err := h.repo.Merge(ctx, incoming, h.now())
	if err != nil {
		h.fail(ctx, w, r, start, "failed to import tasks", err)
		return
	}

	span.SetAttributes(attribute.Int("task.added", added), attribute.Int("task.skipped", skipped))
	h.metrics.ImportedTasks.Add(ctx, int64(added))
	if added > 0 {
		h.metrics.RecordMutation(ctx, "import")
	}
	h.logger.InfoContext(ctx, "tasks imported", slog.Int("added", added), slog.Int("skipped", skipped))

	h.respond(ctx, w, r, start, http.StatusOK, map[string]int{"added": added, "skipped": skipped})
}

func attachment(now time.Time, ext string) string {
	return fmt.Sprintf(`attachment; filename="tasks-%s.%s"`, now.Format("2006-01-02"), ext)
}
