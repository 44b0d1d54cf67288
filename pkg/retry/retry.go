package retry

import (
	"context"
	"time"
)

// Policy — ограниченное число попыток с экспоненциальной паузой.
type Policy struct {
	Attempts int
	Backoff  time.Duration
	MaxDelay time.Duration

	// Retryable решает, есть ли смысл повторять. nil — повторяем любую ошибку.
	Retryable func(error) bool
	// OnRetry вызывается перед паузой.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Once — без повторов (маржинальные шаги).
var Once = Policy{Attempts: 1}

func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Backoff

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts || (p.Retryable != nil && !p.Retryable(err)) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(i, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
