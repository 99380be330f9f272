package storage

import (
	"context"
	"fmt"

	"github.com/centavobot/centavo/internal/service"
)

// SaveParseMetric appends one per-message observability record.
func (s *SQLiteStorage) SaveParseMetric(ctx context.Context, metric *service.ParseMetric) error {
	if metric == nil {
		return fmt.Errorf("%w: metric", ErrNilParameter)
	}
	if err := validateString(metric.UserID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parse_metrics
			(user_id, strategy, action, confidence, latency_ms, success, cache_hit,
			 permission_required, permission_granted, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		metric.UserID, metric.Strategy, metric.IntentAction, metric.Confidence,
		metric.LatencyMs, metric.Success, metric.CacheHit,
		metric.PermissionRequired, metric.PermissionGranted, metric.ErrorMessage,
		metric.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save parse metric: %w", err)
	}
	return nil
}
