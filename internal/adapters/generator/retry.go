package generator

import (
	"context"
	"errors"
	"time"

	openai "cyberaware/internal/infra/openai"
)

// retryPolicy решает, повторять ли запрос к модели после ошибки.
type retryPolicy struct {
	attempts int
	base     time.Duration
}

// decide возвращает паузу перед следующей попыткой или false, если пора сдаваться.
// attempt считается с единицы; пауза растёт линейно: attempt × base.
func (p retryPolicy) decide(attempt int, err error) (time.Duration, bool) {
	if err == nil || attempt >= p.attempts {
		return 0, false
	}
	if errors.Is(err, openai.ErrMissingAPIKey) || errors.Is(err, context.Canceled) {
		return 0, false
	}
	return time.Duration(attempt) * p.base, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
