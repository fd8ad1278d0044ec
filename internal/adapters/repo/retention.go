package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// Кандидаты на удаление блокируются FOR UPDATE SKIP LOCKED: вопрос, который
// сейчас держит транзакция отправки результата (FOR SHARE), пропускается.
const pruneQuizCandidatesSQL = `
SELECT q.id
FROM quiz q
WHERE q.created_at < $1
  AND q.id NOT IN (SELECT id FROM quiz ORDER BY created_at DESC LIMIT $2)
  AND (q.slide_id IS NULL OR q.slide_id NOT IN (SELECT id FROM slides ORDER BY created_at DESC LIMIT $2))
  AND NOT EXISTS (SELECT 1 FROM scores sc WHERE sc.quiz_id = q.id)
FOR UPDATE OF q SKIP LOCKED
`

// Повторная проверка ссылок непосредственно перед удалением видит результаты,
// зафиксированные после выборки кандидатов.
const pruneQuizSQL = `
DELETE FROM quiz
WHERE id = ANY($1)
  AND NOT EXISTS (SELECT 1 FROM scores sc WHERE sc.quiz_id = quiz.id)
RETURNING id
`

const pruneSlidesSQL = `
DELETE FROM slides
WHERE created_at < $1
  AND id NOT IN (SELECT id FROM slides ORDER BY created_at DESC LIMIT $2)
  AND NOT EXISTS (SELECT 1 FROM quiz q WHERE q.slide_id = slides.id)
RETURNING id
`

const pruneHeadlinesSQL = `
DELETE FROM headlines
WHERE timestamp < $1
  AND id NOT IN (SELECT id FROM headlines ORDER BY timestamp DESC LIMIT $2)
  AND NOT EXISTS (SELECT 1 FROM slides s WHERE s.headline_id = headlines.id)
RETURNING id
`

// Prune реализует domain.RetentionRepo: удаляет вопросы, слайды и заголовки старше
// olderThan в порядке quiz → slides → headlines одной транзакцией.
func (p *Postgres) Prune(ctx context.Context, olderThan time.Time, keep int) (domain.PruneResult, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "prune", "quiz")
	if err != nil {
		return domain.PruneResult{}, err
	}
	defer tx.Rollback(ctx)

	var res domain.PruneResult
	candidates, err := collectIDs(ctx, tx, "prune_quiz_candidates", "quiz", pruneQuizCandidatesSQL, olderThan, keep)
	if err != nil {
		return domain.PruneResult{}, persistErr("prune_quiz", err)
	}
	if len(candidates) > 0 {
		res.QuizIDs, err = collectIDs(ctx, tx, "prune_quiz", "quiz", pruneQuizSQL, candidates)
		if err != nil {
			return domain.PruneResult{}, persistErr("prune_quiz", err)
		}
	}
	res.SlideIDs, err = collectIDs(ctx, tx, "prune_slides", "slides", pruneSlidesSQL, olderThan, keep)
	if err != nil {
		return domain.PruneResult{}, persistErr("prune_slides", err)
	}
	res.HeadlineIDs, err = collectIDs(ctx, tx, "prune_headlines", "headlines", pruneHeadlinesSQL, olderThan, keep)
	if err != nil {
		return domain.PruneResult{}, persistErr("prune_headlines", err)
	}
	if err := commit(ctx, tx, "prune", "quiz"); err != nil {
		return domain.PruneResult{}, err
	}

	metrics.AddPruned("quiz", len(res.QuizIDs))
	metrics.AddPruned("slides", len(res.SlideIDs))
	metrics.AddPruned("headlines", len(res.HeadlineIDs))
	return res, nil
}

func collectIDs(ctx context.Context, tx pgx.Tx, op, target, query string, args ...any) ([]int64, error) {
	start := time.Now()
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		metrics.ObserveNetworkRequest("postgres", op, target, start, err)
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	metrics.ObserveNetworkRequest("postgres", op, target, start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
