// Package retry - повтор вызовов внешних систем с экспоненциальной задержкой.
package retry

import (
	"context"
	"errors"
	"time"
)

// PermanentError оборачивает ошибку, которую нет смысла повторять.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent помечает err как неповторяемую.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Backoff возвращает задержку перед попыткой attempt (с нуля): base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base << uint(attempt)
}

// Do вызывает fn не более maxAttempts раз.
// Останавливается на успехе, на PermanentError или при отмене ctx.
// attempt передаётся в fn с нуля.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(attempt int) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}

		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		// После последней попытки не спим
		if attempt == maxAttempts-1 {
			break
		}

		timer := time.NewTimer(Backoff(baseDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}
