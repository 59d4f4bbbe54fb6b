// Package retry implements bounded, backoff-governed retry of transient
// failures. Every other failure kind propagates on first occurrence.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/dwsmith1983/stratum/internal/metrics"
	"github.com/dwsmith1983/stratum/pkg/types"
)

const maxBackoffSeconds = 3600

// State is the executor's position in the retry state machine.
type State int

// Retry states. Backoff sleeps are blocking suspension points within the
// calling sequential flow; no work is reordered around them.
const (
	StateAttempting State = iota
	StateBackoff
	StateExhausted
	StateSucceeded
)

// DefaultPolicy returns the default retry configuration.
func DefaultPolicy() types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts:       types.DefaultMaxAttempts,
		BackoffSeconds:    types.DefaultBackoffSeconds,
		BackoffMultiplier: types.DefaultBackoffFactor,
	}
}

// CalculateBackoff returns the wait duration before the attempt following
// the given one. Uses exponential backoff: base * multiplier^(attempt-1),
// capped at one hour.
func CalculateBackoff(policy types.RetryPolicy, attempt int) time.Duration {
	base := policy.BackoffSeconds
	if base <= 0 {
		base = types.DefaultBackoffSeconds
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = types.DefaultBackoffFactor
	}
	backoff := base
	if attempt > 1 {
		backoff = base * math.Pow(multiplier, float64(attempt-1))
	}
	if backoff > maxBackoffSeconds {
		backoff = maxBackoffSeconds
	}
	return time.Duration(backoff * float64(time.Second))
}

// Executor runs operations with the configured retry policy.
type Executor struct {
	policy types.RetryPolicy
	logger *slog.Logger

	// sleep is swappable so tests can observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor. Zero policy fields fall back to defaults.
func NewExecutor(policy types.RetryPolicy, logger *slog.Logger) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = types.DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{policy: policy, logger: logger, sleep: sleepContext}
}

// Do executes op, retrying transient failures up to the policy's attempt
// bound. Fatal, data-integrity, and recorder failures propagate immediately.
// When attempts are exhausted the last error is returned wrapped with the
// attempt count.
func (e *Executor) Do(ctx context.Context, name string, op func(context.Context) error) error {
	var lastErr error
	attempt := 1
	state := StateAttempting

	for {
		switch state {
		case StateAttempting:
			err := op(ctx)
			if err == nil {
				state = StateSucceeded
				continue
			}
			lastErr = err
			kind := types.KindOf(err)
			if kind != types.FailureTransient {
				e.logger.Error("operation failed, not retriable",
					"operation", name, "kind", string(kind), "error", err)
				return err
			}
			if attempt >= e.policy.MaxAttempts {
				state = StateExhausted
				continue
			}
			state = StateBackoff

		case StateBackoff:
			metrics.RetriesScheduled.Add(1)
			wait := CalculateBackoff(e.policy, attempt)
			e.logger.Warn("operation failed, backing off",
				"operation", name, "attempt", attempt,
				"maxAttempts", e.policy.MaxAttempts,
				"backoff", wait, "error", lastErr)
			if err := e.sleep(ctx, wait); err != nil {
				return err
			}
			attempt++
			state = StateAttempting

		case StateExhausted:
			e.logger.Error("operation exhausted retries",
				"operation", name, "attempts", attempt, "error", lastErr)
			return exhausted(lastErr, attempt)

		case StateSucceeded:
			if attempt > 1 {
				e.logger.Info("operation succeeded after retry",
					"operation", name, "attempt", attempt)
			}
			return nil
		}
	}
}

// exhausted rewraps the final transient error with the total attempt count,
// preserving the original error chain.
func exhausted(err error, attempts int) error {
	var f *types.Failure
	if errors.As(err, &f) {
		return &types.Failure{Kind: f.Kind, Attempts: attempts, Err: f.Err}
	}
	return &types.Failure{Kind: types.FailureTransient, Attempts: attempts, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
