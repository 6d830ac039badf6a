package platform

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
)

// RetryPolicy bounds the retry behavior applied to every platform request.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy mirrors the documented configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

// Retrier runs platform operations with bounded exponential backoff and a
// circuit breaker. Only failures classified RATE_LIMITED or TRANSIENT are
// retried; a rate-limit retry-after hint stretches the next delay when it
// exceeds the backoff schedule.
type Retrier struct {
	policy  RetryPolicy
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewRetrier creates a Retrier with a breaker that trips after consecutive
// failures, so a dead or hostile endpoint stops being hammered.
func NewRetrier(policy RetryPolicy) *Retrier {
	settings := gobreaker.Settings{
		Name:        "platform-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &Retrier{
		policy:  policy,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     logging.NewLogger("platform"),
	}
}

// Do executes op, retrying classified retryable failures until the attempt
// budget or the context runs out.
func (r *Retrier) Do(ctx context.Context, name string, op func() error) error {
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = r.policy.InitialBackoff
	schedule.MaxInterval = r.policy.MaxBackoff
	schedule.MaxElapsedTime = 0
	schedule.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), errors.ErrCodeTransient, "request cancelled")
		}

		_, err = r.breaker.Execute(func() (interface{}, error) {
			return nil, op()
		})
		if err == nil {
			return nil
		}

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = errors.Wrap(err, errors.ErrCodeTransient, "circuit breaker open")
		}

		if !errors.IsRetryable(err) || attempt >= r.policy.MaxAttempts {
			return err
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return err
		}
		if hint := RetryAfterHint(err); hint > delay {
			delay = hint
		}

		r.log.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt,
			"delay":     delay.String(),
		}).Debug("retrying platform request")

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeTransient, "request cancelled during backoff")
		case <-time.After(delay):
		}
	}
}

// RetryAfterHint extracts the platform's retry-after hint from a rate limit
// error, or zero when there is none.
func RetryAfterHint(err error) time.Duration {
	rascalErr, ok := err.(*errors.RascalError)
	if !ok || rascalErr.Code != errors.ErrCodeRateLimited {
		return 0
	}
	raw, ok := rascalErr.Details["retryAfter"].(string)
	if !ok {
		return 0
	}
	hint, parseErr := time.ParseDuration(raw)
	if parseErr != nil {
		return 0
	}
	return hint
}
