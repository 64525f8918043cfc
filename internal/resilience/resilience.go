package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// Policy wraps external calls with retry and backoff so core logic stays
// retry-agnostic. Non-retriable and missing-argument errors pass straight
// through without a second attempt.
type Policy struct {
	log         *logger.Logger
	maxRetries  uint64
	maxInterval time.Duration
}

func NewPolicy(baseLog *logger.Logger, maxRetries int) *Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Policy{
		log:         baseLog.With("service", "ResiliencePolicy"),
		maxRetries:  uint64(maxRetries),
		maxInterval: 15 * time.Second,
	}
}

// Execute runs op, retrying transient failures with exponential backoff.
func (p *Policy) Execute(ctx context.Context, name string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		var nonRetriable *types.NonRetriableError
		var missingArg *types.MissingArgumentError
		if errors.As(err, &nonRetriable) || errors.As(err, &missingArg) {
			return backoff.Permanent(err)
		}
		p.log.Warn("Retriable operation failed", "operation", name, "attempt", attempt, "error", err)
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = p.maxInterval
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, p.maxRetries), ctx))
}
