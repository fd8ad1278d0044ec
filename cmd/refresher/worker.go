package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"cyberaware/internal/domain"
	"cyberaware/internal/usecase/refresh"
)

// refreshTrigger запускает цикл обновления вне расписания.
type refreshTrigger interface {
	TriggerNow(ctx context.Context, cause domain.RefreshCause) (refresh.Report, error)
}

// jobWorker обрабатывает ручные запросы на обновление из очереди.
type jobWorker struct {
	log     zerolog.Logger
	queue   domain.RefreshQueue
	trigger refreshTrigger
	backoff time.Duration
}

func (w *jobWorker) Run(ctx context.Context) {
	if w.backoff <= 0 {
		w.backoff = time.Second
	}
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("refresher: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}
		w.handle(ctx, job, ack)
	}
}

func (w *jobWorker) handle(ctx context.Context, job domain.RefreshJob, ack domain.AckFunc) {
	jobLog := w.log.With().Str("job_id", job.ID).Str("cause", string(job.Cause)).Logger()
	cause := job.Cause
	if cause == "" {
		cause = domain.RefreshCauseManual
	}

	report, err := w.trigger.TriggerNow(ctx, cause)
	switch {
	case errors.Is(err, domain.ErrRefreshInProgress):
		jobLog.Info().Msg("refresher: цикл уже выполняется, запрос поглощён")
	case err != nil && ctx.Err() != nil:
		jobLog.Warn().Err(err).Msg("refresher: остановка во время цикла, возвращаем задачу в очередь")
		if ackErr := ack(false); ackErr != nil {
			jobLog.Error().Err(ackErr).Msg("refresher: не удалось вернуть задачу")
		}
		return
	case err != nil:
		jobLog.Error().Err(err).Int("attempts", report.Attempts).Msg("refresher: ручное обновление завершилось ошибкой")
	default:
		jobLog.Info().Str("cycle", report.CycleID).Int("slides", len(report.SlideIDs)).Msg("refresher: ручное обновление выполнено")
	}
	if err := ack(true); err != nil {
		jobLog.Error().Err(err).Msg("refresher: не удалось подтвердить задачу")
	}
}
