package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// SubmitScore реализует domain.ScoreRepo. Вопрос блокируется FOR SHARE до конца
// транзакции, поэтому очистка не может удалить его между проверкой и вставкой.
// Пользователь может отправить результат один раз за обновление контента.
func (p *Postgres) SubmitScore(ctx context.Context, score domain.Score, perfect []int) (domain.UserTotals, error) {
	if err := domain.ValidateScore(score.Value); err != nil {
		return domain.UserTotals{}, err
	}
	if score.CompletedAt.IsZero() {
		score.CompletedAt = p.now()
	}
	if perfect == nil {
		perfect = []int{}
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	tx, err := p.begin(ctx, "submit_score", "scores")
	if err != nil {
		return domain.UserTotals{}, err
	}
	defer tx.Rollback(ctx)

	start := time.Now()
	var quizID int64
	err = tx.QueryRow(ctx, `SELECT id FROM quiz WHERE id = $1 FOR SHARE`, score.QuizID).Scan(&quizID)
	metrics.ObserveNetworkRequest("postgres", "quiz_lock", "quiz", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserTotals{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.UserTotals{}, persistErr("submit_score", err)
	}

	start = time.Now()
	var taken bool
	err = tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM scores
	WHERE user_id = $1
	  AND completed_at >= COALESCE((SELECT MAX(timestamp) FROM headlines), $2)
)`, score.UserID, score.CompletedAt).Scan(&taken)
	metrics.ObserveNetworkRequest("postgres", "score_taken", "scores", start, err)
	if err != nil {
		return domain.UserTotals{}, persistErr("submit_score", err)
	}
	if taken {
		return domain.UserTotals{}, domain.ErrAlreadyTaken
	}

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO scores (user_id, quiz_id, score, completed_at)
VALUES ($1, $2, $3, $4)
`, score.UserID, quizID, score.Value, score.CompletedAt)
	metrics.ObserveNetworkRequest("postgres", "score_insert", "scores", start, err)
	if err != nil {
		return domain.UserTotals{}, persistErr("submit_score", err)
	}

	totals := domain.UserTotals{UserID: score.UserID, LastQuiz: score.CompletedAt}
	start = time.Now()
	var total, taken64, perfect64 sql.NullInt64
	err = tx.QueryRow(ctx, `
SELECT COALESCE(SUM(score), 0),
       COUNT(DISTINCT quiz_id),
       COALESCE(SUM(CASE WHEN score = ANY($2) THEN 1 ELSE 0 END), 0)
FROM scores
WHERE user_id = $1
`, score.UserID, perfect).Scan(&total, &taken64, &perfect64)
	metrics.ObserveNetworkRequest("postgres", "score_totals", "scores", start, err)
	if err != nil {
		return domain.UserTotals{}, persistErr("submit_score", err)
	}
	totals.TotalScore = int(total.Int64)
	totals.QuizzesTaken = int(taken64.Int64)
	totals.PerfectQuizzes = int(perfect64.Int64)

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO user_totals (user_id, total_score, perfect_quizzes, last_quiz, quizzes_taken)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
	total_score = EXCLUDED.total_score,
	perfect_quizzes = EXCLUDED.perfect_quizzes,
	last_quiz = EXCLUDED.last_quiz,
	quizzes_taken = EXCLUDED.quizzes_taken
`, totals.UserID, totals.TotalScore, totals.PerfectQuizzes, totals.LastQuiz, totals.QuizzesTaken)
	metrics.ObserveNetworkRequest("postgres", "user_totals_upsert", "user_totals", start, err)
	if err != nil {
		return domain.UserTotals{}, persistErr("submit_score", err)
	}

	if err := commit(ctx, tx, "submit_score", "scores"); err != nil {
		return domain.UserTotals{}, err
	}
	return totals, nil
}
