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

func lintJobs() []platform.Job {
	return []platform.Job{
		{
			ID: 101, Name: "lint", Status: platform.StatusCompleted, Conclusion: platform.ConclusionSuccess,
			Steps: []platform.Step{
				{Number: 1, Name: "Set up job", Conclusion: platform.ConclusionSuccess},
				{Number: 2, Name: "Run linter", Conclusion: platform.ConclusionSuccess},
			},
		},
		{ID: 102, Name: "report", Status: platform.StatusCompleted, Conclusion: platform.ConclusionFailure},
	}
}

func TestCollectAssemblesCompleteBundle(t *testing.T) {
	fake := newFakePlatform()
	fake.jobs = lintJobs()
	fake.jobLogs = func(jobID int64) (string, error) {
		if jobID == 101 {
			return "linted 14 files\n", nil
		}
		return "report uploaded", nil
	}

	collector := NewLogCollector(fake, newFakeClock(), 3)
	bundle, err := collector.Collect(context.Background(), "acme/payroll", 42)

	require.NoError(t, err)
	require.Len(t, bundle.Jobs, 2)
	assert.True(t, bundle.Complete())
	assert.Equal(t, "lint", bundle.Jobs[0].Name, "platform job order is preserved")
	assert.Equal(t, "linted 14 files\n", bundle.Jobs[0].Content)
	assert.Equal(t, "report uploaded", bundle.Jobs[1].Content)
}

func TestCollectRetriesUntilLogsAppear(t *testing.T) {
	fake := newFakePlatform()
	fake.jobs = lintJobs()[:1]
	attempts := 0
	fake.jobLogs = func(int64) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.NotFound("job logs")
		}
		return "late but present\n", nil
	}

	clock := newFakeClock()
	collector := NewLogCollector(fake, clock, 5)
	bundle, err := collector.Collect(context.Background(), "acme/payroll", 42)

	require.NoError(t, err)
	assert.True(t, bundle.Complete())
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.waits,
		"retry delays double from one second")
}

func TestCollectDegradesToPartialBundle(t *testing.T) {
	fake := newFakePlatform()
	fake.jobs = lintJobs()
	fake.jobLogs = func(jobID int64) (string, error) {
		if jobID == 102 {
			return "", errors.NotFound("job logs")
		}
		return "ok\n", nil
	}

	collector := NewLogCollector(fake, newFakeClock(), 2)
	bundle, err := collector.Collect(context.Background(), "acme/payroll", 42)

	require.NoError(t, err, "missing logs degrade the bundle, they never fail the session")
	require.Len(t, bundle.Jobs, 2)
	assert.False(t, bundle.Complete())
	assert.True(t, bundle.Jobs[0].Available)
	assert.False(t, bundle.Jobs[1].Available)
	assert.NotEmpty(t, bundle.Jobs[1].Error)
}

func TestCollectReturnsErrorOnlyWhenCancelled(t *testing.T) {
	fake := newFakePlatform()
	fake.jobs = lintJobs()[:1]

	ctx, cancel := context.WithCancel(context.Background())
	fake.jobLogs = func(int64) (string, error) {
		cancel()
		return "", errors.New(errors.ErrCodeTransient, "flaky connection")
	}

	clock := newFakeClock()
	clock.hold = true
	collector := NewLogCollector(fake, clock, 5)

	_, err := collector.Collect(ctx, "acme/payroll", 42)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTransient, errors.GetCode(err))
}

func TestRenderMarksUnavailableJobs(t *testing.T) {
	bundle := &LogBundle{
		RunID: 42,
		Jobs: []JobLog{
			{Name: "lint", Status: "completed", Conclusion: "success", Available: true, Content: "all clean"},
			{Name: "report", Status: "completed", Conclusion: "failure", Error: "logs expired"},
		},
	}

	out := bundle.Render()
	assert.Contains(t, out, "==== job: lint (completed/success) ====")
	assert.Contains(t, out, "all clean\n")
	assert.Contains(t, out, "==== job: report (completed/failure) ====")
	assert.Contains(t, out, "(logs unavailable: logs expired)")
}
