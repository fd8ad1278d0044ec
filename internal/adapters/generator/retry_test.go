package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	openai "cyberaware/internal/infra/openai"
)

func TestRetryPolicyDecide(t *testing.T) {
	p := retryPolicy{attempts: 3, base: 10 * time.Second}
	transient := &openai.StatusError{StatusCode: 503}

	cases := []struct {
		name    string
		attempt int
		err     error
		delay   time.Duration
		retry   bool
	}{
		{"первая ошибка", 1, transient, 10 * time.Second, true},
		{"вторая ошибка", 2, transient, 20 * time.Second, true},
		{"попытки исчерпаны", 3, transient, 0, false},
		{"нет ключа", 1, fmt.Errorf("wrap: %w", openai.ErrMissingAPIKey), 0, false},
		{"отмена контекста", 1, context.Canceled, 0, false},
		{"таймаут повторяется", 1, context.DeadlineExceeded, 10 * time.Second, true},
		{"без ошибки", 1, nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delay, retry := p.decide(tc.attempt, tc.err)
			if retry != tc.retry || delay != tc.delay {
				t.Fatalf("decide(%d, %v) = (%v, %v), ожидали (%v, %v)", tc.attempt, tc.err, delay, retry, tc.delay, tc.retry)
			}
		})
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled, получили %v", err)
	}
}
