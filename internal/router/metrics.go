package router

import (
	"context"
	"log/slog"

	"github.com/centavobot/centavo/internal/service"
)

// Recorder logs one line per resolved message and mirrors the metric to
// the storage sink when one is configured. Sink failures are logged and
// dropped; recording never fails the message path.
type Recorder struct {
	storage service.Storage
	logger  *slog.Logger
}

// NewRecorder creates a metrics recorder. storage may be nil for a
// log-only recorder.
func NewRecorder(storage service.Storage, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{storage: storage, logger: logger}
}

// Record implements service.Metrics.
func (r *Recorder) Record(ctx context.Context, metric service.ParseMetric) {
	attrs := []any{
		"user_id", metric.UserID,
		"strategy", metric.Strategy,
		"action", metric.IntentAction,
		"confidence", metric.Confidence,
		"cache_hit", metric.CacheHit,
		"latency_ms", metric.LatencyMs,
		"success", metric.Success,
	}
	if metric.PermissionRequired != "" {
		attrs = append(attrs, "permission", metric.PermissionRequired, "granted", metric.PermissionGranted)
	}
	if metric.ErrorMessage != "" {
		attrs = append(attrs, "error", metric.ErrorMessage)
	}
	r.logger.Info("message resolved", attrs...)

	if r.storage == nil {
		return
	}
	if err := r.storage.SaveParseMetric(ctx, &metric); err != nil {
		r.logger.Warn("parse metric dropped", "user_id", metric.UserID, "error", err)
	}
}
