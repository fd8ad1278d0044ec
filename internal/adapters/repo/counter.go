package repo

import (
	"context"
	"fmt"
	"time"

	"cyberaware/internal/infra/metrics"
)

// Глобальный счётчик пройденных викторин хранится одной строкой с id = 1.
const quizCounterID = 1

// QuizCount возвращает значение глобального счётчика викторин. Пока счётчик
// ни разу не увеличивали, возвращается 0.
func (p *Postgres) QuizCount(ctx context.Context) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := p.db.QueryRow(ctx, `SELECT COALESCE((SELECT count FROM quiz_counts WHERE id = $1), 0)`, quizCounterID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "quiz_count", "quiz_counts", start, err)
	if err != nil {
		return 0, fmt.Errorf("quiz count: %w", err)
	}
	return count, nil
}

// IncrementQuizCount атомарно увеличивает счётчик и возвращает новое значение.
func (p *Postgres) IncrementQuizCount(ctx context.Context) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := p.db.QueryRow(ctx, `
INSERT INTO quiz_counts (id, count) VALUES ($1, 1)
ON CONFLICT (id) DO UPDATE SET count = quiz_counts.count + 1
RETURNING count`, quizCounterID).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "quiz_count_incr", "quiz_counts", start, err)
	if err != nil {
		return 0, persistErr("increment_quiz_count", err)
	}
	return count, nil
}
