package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/platform"
)

func TestDiscoverPicksEarliestRunInWindow(t *testing.T) {
	clock := newFakeClock()
	since := clock.Now()
	fake := newFakePlatform()
	fake.listRuns = func(int) ([]platform.Run, error) {
		return []platform.Run{
			{ID: 2, HeadBranch: "lint-testing-abcde", CreatedAt: since.Add(10 * time.Second)},
			{ID: 1, HeadBranch: "lint-testing-abcde", CreatedAt: since.Add(2 * time.Second)},
			{ID: 3, HeadBranch: "other-branch", CreatedAt: since.Add(time.Second)},
		}, nil
	}

	tracker := NewTracker(fake, clock)
	run, err := tracker.Discover(context.Background(), "acme/payroll", "lint-testing-abcde",
		since, time.Minute, 3*time.Second)

	require.NoError(t, err)
	assert.Equal(t, int64(1), run.ID, "earliest creation time wins on ambiguity")
}

func TestDiscoverIgnoresRunsBeforeWindow(t *testing.T) {
	clock := newFakeClock()
	since := clock.Now()
	fake := newFakePlatform()
	fake.listRuns = func(int) ([]platform.Run, error) {
		return []platform.Run{
			{ID: 1, HeadBranch: "lint-testing-abcde", CreatedAt: since.Add(-time.Hour)},
		}, nil
	}

	tracker := NewTracker(fake, clock)
	_, err := tracker.Discover(context.Background(), "acme/payroll", "lint-testing-abcde",
		since, 30*time.Second, 3*time.Second)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunNotFound, errors.GetCode(err))
}

func TestDiscoverTimesOutWithoutBusyLooping(t *testing.T) {
	clock := newFakeClock()
	fake := newFakePlatform()

	tracker := NewTracker(fake, clock)
	_, err := tracker.Discover(context.Background(), "acme/payroll", "lint-testing-abcde",
		clock.Now(), 30*time.Second, 3*time.Second)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunNotFound, errors.GetCode(err))

	// Every wait between polls must be a full poll interval.
	require.NotEmpty(t, clock.waits)
	for _, wait := range clock.waits {
		assert.Equal(t, 3*time.Second, wait)
	}
	// 30s budget at 3s cadence: at most 11 list calls.
	assert.LessOrEqual(t, fake.listRunCalls, 11)
}

func TestAwaitTerminalReturnsTimedOutOutcome(t *testing.T) {
	clock := newFakeClock()
	fake := newFakePlatform()
	fake.getRun = func(int) (*platform.Run, error) {
		return &platform.Run{ID: 42, Status: platform.StatusInProgress}, nil
	}

	tracker := NewTracker(fake, clock)
	run, err := tracker.AwaitTerminal(context.Background(), "acme/payroll", 42,
		3*time.Second, 30*time.Second)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRunTimedOut, errors.GetCode(err))
	require.NotNil(t, run, "the last observed run state must be returned with the timeout")
	assert.Equal(t, platform.StatusInProgress, run.Status)
}

func TestAwaitTerminalObservesCancellationBetweenPolls(t *testing.T) {
	clock := newFakeClock()
	clock.hold = true
	fake := newFakePlatform()
	fake.getRun = func(int) (*platform.Run, error) {
		return &platform.Run{ID: 42, Status: platform.StatusQueued}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	tracker := NewTracker(fake, clock)
	start := time.Now()
	_, err := tracker.AwaitTerminal(ctx, "acme/payroll", 42, time.Hour, 24*time.Hour)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
