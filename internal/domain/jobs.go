package domain

import (
	"context"
	"time"
)

// RefreshCause описывает источник запуска обновления.
type RefreshCause string

const (
	// RefreshCauseTimer — плановый запуск по таймеру.
	RefreshCauseTimer RefreshCause = "timer"
	// RefreshCauseStartup — запуск при старте процесса.
	RefreshCauseStartup RefreshCause = "startup"
	// RefreshCauseManual — запуск по запросу администратора.
	RefreshCauseManual RefreshCause = "manual"
)

// RefreshJob описывает запрос на внеплановое обновление контента.
type RefreshJob struct {
	ID          string       `json:"job_id,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	Cause       RefreshCause `json:"cause"`
}

// RefreshQueue описывает очередь запросов на обновление.
type RefreshQueue interface {
	Enqueue(ctx context.Context, job RefreshJob) error
	Receive(ctx context.Context) (RefreshJob, AckFunc, error)
}

// AckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type AckFunc func(success bool) error
