package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventRefreshCompleted фиксирует успешный цикл обновления.
	BusinessMetricEventRefreshCompleted = "refresh_completed"
	// BusinessMetricEventRefreshFailed фиксирует неудачный цикл обновления.
	BusinessMetricEventRefreshFailed = "refresh_failed"
	// BusinessMetricEventScoreSubmitted фиксирует сохранение результата викторины.
	BusinessMetricEventScoreSubmitted = "score_submitted"
	// BusinessMetricEventHighlightPosted фиксирует публикацию в соцсети.
	BusinessMetricEventHighlightPosted = "highlight_posted"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
