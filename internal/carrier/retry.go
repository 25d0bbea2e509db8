package carrier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultMaxAttempts = 3

// RetryPolicy wraps live carrier calls in a bounded retry with linear
// backoff. Attempt counters are keyed by (carrier, operation) so one noisy
// operation does not distort another's logs.
type RetryPolicy struct {
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	attempts map[string]int
}

func NewRetryPolicy(maxAttempts int, backoff time.Duration, logger *zap.Logger) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
		attempts:    map[string]int{},
	}
}

// Do runs fn up to maxAttempts times. Validation failures
// (invalid_tracking_number) are never retried; everything else is, with
// backoff between attempts. The last error wins.
func (p *RetryPolicy) Do(ctx context.Context, carrierName, operation string, fn func() error) error {
	key := fmt.Sprintf("%s:%s", carrierName, operation)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		p.countAttempt(key)

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var provErr *ProviderError
		if errors.As(lastErr, &provErr) && provErr.Code == CodeInvalidTrackingNumber {
			return lastErr
		}

		if attempt == p.maxAttempts {
			break
		}

		p.logger.Warn("carrier call failed, retrying",
			zap.String("carrier", carrierName),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}

	return lastErr
}

func (p *RetryPolicy) countAttempt(key string) {
	p.mu.Lock()
	p.attempts[key]++
	p.mu.Unlock()
}

// Attempts reports the total attempts recorded for a (carrier, operation)
// pair.
func (p *RetryPolicy) Attempts(carrierName, operation string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[fmt.Sprintf("%s:%s", carrierName, operation)]
}
