package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// Сообщения, которые API возвращает пользователю.
const (
	MsgSignIn       = "Sign in to save your score for the leaderboard!"
	MsgAlreadyTaken = "Quiz already taken—check back for new content."
	MsgSaved        = "Score saved! Check the leaderboard."
)

// Result описывает итог отправки результата.
type Result struct {
	Saved   bool
	Status  string
	Message string
	Totals  *domain.UserTotals
}

// Service принимает результаты викторины.
type Service struct {
	scores  domain.ScoreRepo
	events  domain.BusinessMetricRepo
	scoring domain.Scoring
	log     zerolog.Logger
	now     func() time.Time
}

// NewService создаёт сервис. events может быть nil.
func NewService(scores domain.ScoreRepo, events domain.BusinessMetricRepo, scoring domain.Scoring, logger zerolog.Logger) *Service {
	return &Service{scores: scores, events: events, scoring: scoring, log: logger, now: time.Now}
}

// Submit проверяет и сохраняет результат. Без identity результат не сохраняется.
// Повторная попытка до следующего обновления возвращает Saved=false без ошибки.
func (s *Service) Submit(ctx context.Context, identity *domain.Identity, quizID int64, score int) (Result, error) {
	if err := domain.ValidateScore(score); err != nil {
		metrics.ScoresSubmittedTotal.WithLabelValues("invalid").Inc()
		return Result{}, err
	}
	status := s.scoring.Status(score)
	if identity == nil {
		metrics.ScoresSubmittedTotal.WithLabelValues("anonymous").Inc()
		return Result{Status: status, Message: MsgSignIn}, nil
	}

	totals, err := s.scores.SubmitScore(ctx, domain.Score{
		UserID:      identity.UserID,
		QuizID:      quizID,
		Value:       score,
		CompletedAt: s.now().UTC(),
	}, s.scoring.PerfectValues())
	switch {
	case errors.Is(err, domain.ErrAlreadyTaken):
		metrics.ScoresSubmittedTotal.WithLabelValues("duplicate").Inc()
		return Result{Status: status, Message: MsgAlreadyTaken}, nil
	case err != nil:
		metrics.ScoresSubmittedTotal.WithLabelValues("failed").Inc()
		return Result{}, err
	}

	metrics.ScoresSubmittedTotal.WithLabelValues("saved").Inc()
	s.log.Info().Int64("user_id", identity.UserID).Int64("quiz_id", quizID).Int("score", score).Msg("quiz: результат сохранён")
	s.recordEvent(ctx, identity.UserID, quizID, score, status)
	return Result{Saved: true, Status: status, Message: MsgSaved, Totals: &totals}, nil
}

func (s *Service) recordEvent(ctx context.Context, userID, quizID int64, score int, status string) {
	if s.events == nil {
		return
	}
	err := s.events.RecordBusinessMetric(context.WithoutCancel(ctx), domain.BusinessMetric{
		Event:  domain.BusinessMetricEventScoreSubmitted,
		UserID: &userID,
		Metadata: map[string]any{
			"quiz_id": quizID,
			"score":   score,
			"status":  status,
			"perfect": s.scoring.IsPerfect(score),
		},
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("quiz: не удалось записать бизнес-метрику")
	}
}
