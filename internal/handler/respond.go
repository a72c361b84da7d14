package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/hiroki-koketsu/go-tasklist/internal/model"
)

// Health returns a health check response.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond writes payload as JSON and records request metrics.
func (h *TaskHandler) respond(ctx context.Context, w http.ResponseWriter, r *http.Request, start time.Time, status int, payload any) {
	h.respondJSON(w, status, payload)
	h.recordMetrics(ctx, r, status, start)
}

// fail maps err to a status code. Domain errors are reported verbatim;
// anything else is logged and replaced by message.
func (h *TaskHandler) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, start time.Time, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, message)
		h.logger.ErrorContext(ctx, message, slog.Any("error", err))
		h.respondError(w, status, message)
	} else {
		h.logger.WarnContext(ctx, message, slog.Any("error", err))
		h.respondError(w, status, err.Error())
	}
	h.recordMetrics(ctx, r, status, start)
}

func (h *TaskHandler) badRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
	h.respondError(w, http.StatusBadRequest, "invalid request body")
	h.recordMetrics(ctx, r, http.StatusBadRequest, start)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrTaskNotFound), errors.Is(err, model.ErrSubtaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTitleRequired), errors.Is(err, model.ErrInvalidPriority):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *TaskHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func (h *TaskHandler) recordMetrics(ctx context.Context, r *http.Request, status int, start time.Time) {
	duration := time.Since(start).Seconds()

	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		route = rctx.RoutePattern()
	}

	attrs := metric.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	h.metrics.RequestCounter.Add(ctx, 1, attrs)
	h.metrics.RequestDuration.Record(ctx, duration, attrs)
}
