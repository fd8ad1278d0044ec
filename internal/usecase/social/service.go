package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// DailyGuard выполняет fn не больше одного раза для ключа в течение ttl.
type DailyGuard interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// Service публикует ежедневный вопрос викторины в соцсеть.
type Service struct {
	repo     domain.HighlightRepo
	poster   domain.SocialPoster
	events   domain.BusinessMetricRepo
	guard    DailyGuard
	siteLine string
	log      zerolog.Logger
	now      func() time.Time
}

// NewService создаёт сервис публикаций. events может быть nil.
func NewService(repo domain.HighlightRepo, poster domain.SocialPoster, events domain.BusinessMetricRepo, siteLine string, logger zerolog.Logger) *Service {
	return &Service{repo: repo, poster: poster, events: events, siteLine: siteLine, log: logger, now: time.Now}
}

// WithGuard включает защиту от повторной публикации несколькими процессами.
func (s *Service) WithGuard(guard DailyGuard) *Service {
	s.guard = guard
	return s
}

// PostHighlight выбирает вопрос последней партии и публикует его.
// Если данных нет, возвращает domain.ErrNoPostCandidate.
func (s *Service) PostHighlight(ctx context.Context) (string, error) {
	candidate, err := s.repo.PickPostCandidate(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoPostCandidate) {
			metrics.SocialPostsTotal.WithLabelValues("skipped").Inc()
			s.log.Warn().Msg("social: нет вопроса со связанным заголовком, публикация пропущена")
		}
		return "", err
	}
	text := ComposeHighlight(candidate, s.siteLine)
	if err := s.poster.Publish(ctx, text); err != nil {
		metrics.SocialPostsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("публикация: %w", err)
	}
	metrics.SocialPostsTotal.WithLabelValues("posted").Inc()
	s.log.Info().Str("source", candidate.Source).Msg("social: вопрос опубликован")
	if s.events != nil {
		if err := s.events.RecordBusinessMetric(ctx, domain.BusinessMetric{
			Event:      domain.BusinessMetricEventHighlightPosted,
			Metadata:   map[string]any{"source": candidate.Source, "length": len([]rune(text))},
			OccurredAt: s.now().UTC(),
		}); err != nil {
			s.log.Warn().Err(err).Msg("social: не удалось записать бизнес-метрику")
		}
	}
	return text, nil
}

// RunDaily публикует вопрос каждый день в hour:minute пояса loc до отмены ctx.
func (s *Service) RunDaily(ctx context.Context, hour, minute int, loc *time.Location) {
	for {
		next := NextRun(s.now(), hour, minute, loc)
		s.log.Info().Time("next_run", next).Msg("social: следующая публикация запланирована")
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := s.postDaily(ctx, next); err != nil && !errors.Is(err, domain.ErrNoPostCandidate) {
			s.log.Error().Err(err).Msg("social: ошибка ежедневной публикации")
		}
	}
}

func (s *Service) postDaily(ctx context.Context, slot time.Time) error {
	post := func() error {
		_, err := s.PostHighlight(ctx)
		return err
	}
	if s.guard == nil {
		return post()
	}
	return s.guard.Once(ctx, "social:daily:"+slot.Format("2006-01-02"), 23*time.Hour, post)
}
