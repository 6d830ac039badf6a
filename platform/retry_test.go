package platform

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nopcorn/rascalrunner/errors"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestRetrierRetriesTransient(t *testing.T) {
	r := NewRetrier(fastPolicy(4))

	calls := 0
	err := r.Do(context.Background(), "get-run", func() error {
		calls++
		if calls < 3 {
			return errors.Transient(fmt.Errorf("502"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierStopsAtAttemptBudget(t *testing.T) {
	r := NewRetrier(fastPolicy(3))

	calls := 0
	err := r.Do(context.Background(), "get-run", func() error {
		calls++
		return errors.Transient(fmt.Errorf("503"))
	})

	assert.True(t, errors.Is(err, errors.ErrCodeTransient))
	assert.Equal(t, 3, calls)
}

func TestRetrierDoesNotRetryPermanentFailures(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"auth", errors.AuthDenied("bad token")},
		{"not found", errors.NotFound("ref")},
		{"permanent", errors.New(errors.ErrCodePermanentClient, "422")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetrier(fastPolicy(5))
			calls := 0
			err := r.Do(context.Background(), "op", func() error {
				calls++
				return tc.err
			})
			assert.Equal(t, 1, calls, "non-retryable errors must propagate immediately")
			assert.Equal(t, tc.err, err)
		})
	}
}

func TestRetrierHonorsContextCancellation(t *testing.T) {
	r := NewRetrier(RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := r.Do(ctx, "op", func() error {
		return errors.Transient(fmt.Errorf("down"))
	})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the backoff wait")
}

func TestRetryAfterHint(t *testing.T) {
	assert.Equal(t, 7*time.Second, RetryAfterHint(errors.RateLimited(7*time.Second)))
	assert.Equal(t, time.Duration(0), RetryAfterHint(errors.Transient(fmt.Errorf("x"))))
	assert.Equal(t, time.Duration(0), RetryAfterHint(nil))
}

func TestRetrierHonorsRetryAfterOverBackoff(t *testing.T) {
	r := NewRetrier(fastPolicy(2))

	calls := 0
	start := time.Now()
	err := r.Do(context.Background(), "list-runs", func() error {
		calls++
		if calls == 1 {
			return errors.RateLimited(50 * time.Millisecond)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"retry-after hint should stretch the delay past the backoff schedule")
}
