package payment

import (
	"context"
	"math"
	"time"

	"github.com/visaflow/visaflow-api/internal/domain"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
	}
}

// RetryExecutor runs one adapter call with bounded exponential backoff. It
// only consults the shared taxonomy's retryable flag; non-retryable errors
// propagate on the first attempt without entering the loop.
type RetryExecutor struct {
	cfg   RetryConfig
	audit *AuditLogger
}

func NewRetryExecutor(cfg RetryConfig, audit *AuditLogger) *RetryExecutor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &RetryExecutor{cfg: cfg, audit: audit}
}

// Do invokes op until it succeeds, fails with a non-retryable error, the
// attempt budget is spent, or ctx is cancelled. Backoff waits are cooperative;
// they never block other in-flight flows.
func (e *RetryExecutor) Do(
	ctx context.Context,
	traceID string,
	method domain.PaymentMethod,
	description string,
	op func(ctx context.Context) error,
) error {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				e.audit.Record(ctx, auditEntry(domain.AuditActionRetrySucceeded, method, traceID, map[string]any{
					"operation": description,
					"attempt":   attempt,
				}))
			}
			return nil
		}

		lastErr = err

		if !domain.IsRetryable(err) {
			return err
		}

		e.audit.Record(ctx, auditError(auditEntry(domain.AuditActionRetryFailed, method, traceID, map[string]any{
			"operation":   description,
			"attempt":     attempt,
			"maxAttempts": e.cfg.MaxAttempts,
		}), err))

		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.backoff(attempt)

		e.audit.Record(ctx, auditEntry(domain.AuditActionRetryInitiated, method, traceID, map[string]any{
			"operation":   description,
			"attempt":     attempt + 1,
			"maxAttempts": e.cfg.MaxAttempts,
			"delayMs":     delay.Milliseconds(),
		}))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	e.audit.Record(ctx, auditError(auditEntry(domain.AuditActionRetryExhausted, method, traceID, map[string]any{
		"operation":   description,
		"maxAttempts": e.cfg.MaxAttempts,
	}), lastErr))

	return lastErr
}

func (e *RetryExecutor) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(e.cfg.BaseDelay) * math.Pow(e.cfg.Multiplier, float64(attempt-1)))
	if delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}
	return delay
}
