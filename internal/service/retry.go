package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/spec-kit/case-service/internal/observability"
	"github.com/spec-kit/case-service/internal/repository"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

// RetryConfig bounds how often a write that lost an optimistic race is
// re-read and re-decided.
type RetryConfig struct {
	Retries         int
	InitialInterval time.Duration
}

type conflictRetrier struct {
	cfg     RetryConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// run calls attempt until it succeeds, fails with something other than
// repository.ErrConflict, or the retries are used up. Exhaustion surfaces as
// a retryable CONFLICT error.
func (r conflictRetrier) run(ctx context.Context, operation, caseID string, attempt func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialInterval
	policy.MaxElapsedTime = 0

	retries := r.cfg.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	tries := 0
	err := backoff.Retry(func() error {
		tries++
		err := attempt()
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrConflict) {
			r.metrics.RecordConflict(operation)
			r.logger.Warn("case write conflict",
				zap.String("operation", operation),
				zap.String("case_id", caseID),
				zap.Int("attempt", tries),
			)
			return err
		}
		return backoff.Permanent(err)
	}, b)

	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict("case was modified concurrently; retry the request", map[string]any{
			"case_id":  caseID,
			"attempts": tries,
		})
	}
	return err
}
