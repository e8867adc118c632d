package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultPaymentMaxAttempts    = 3
	defaultPaymentInitialBackoff = 500 * time.Millisecond
	defaultPaymentMaxBackoff     = 10 * time.Second
)

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultPaymentInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultPaymentMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

var _ BackoffScheduler = ExponentialBackoffScheduler{}

// runWithRetry drives fn through bounded attempts with backoff between failures.
// Unrecoverable errors stop the loop immediately.
func (s *Service) runWithRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = defaultPaymentMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if isUnrecoverablePaymentError(err) || attempt == maxAttempts {
			return attempt, err
		}

		delay := defaultPaymentInitialBackoff
		if s != nil && s.backoffScheduler != nil {
			delay = s.backoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return attempt, waitErr
		}
	}
	return maxAttempts, lastErr
}

func isUnrecoverablePaymentError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
		switch strings.TrimSpace(strings.ToUpper(richErr.TextCode)) {
		case "INSUFFICIENT_FUNDS", "INVALID_ADDRESS", "UNAUTHORIZED":
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "insufficient funds") ||
		strings.Contains(msg, "invalid address") ||
		strings.Contains(msg, "unauthorized")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
