package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
	"github.com/nopcorn/rascalrunner/platform"
)

// JobLog is the collected log of one job, in platform-reported order.
type JobLog struct {
	JobID      int64           `json:"job_id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Conclusion string          `json:"conclusion"`
	Steps      []platform.Step `json:"steps"`
	Content    string          `json:"content"`
	Available  bool            `json:"available"`
	Error      string          `json:"error,omitempty"`
}

// LogBundle is the ordered log output of exactly one run.
type LogBundle struct {
	RunID int64    `json:"run_id"`
	Jobs  []JobLog `json:"jobs"`
}

// Complete reports whether every job's log was retrieved.
func (b *LogBundle) Complete() bool {
	if len(b.Jobs) == 0 {
		return false
	}
	for _, j := range b.Jobs {
		if !j.Available {
			return false
		}
	}
	return true
}

// Render formats the bundle for persistence, preserving job and step order.
func (b *LogBundle) Render() string {
	var sb strings.Builder
	for _, job := range b.Jobs {
		fmt.Fprintf(&sb, "==== job: %s (%s/%s) ====\n", job.Name, job.Status, job.Conclusion)
		for _, step := range job.Steps {
			fmt.Fprintf(&sb, "  step %d: %s [%s]\n", step.Number, step.Name, step.Conclusion)
		}
		sb.WriteString("\n")
		if job.Available {
			sb.WriteString(job.Content)
			if !strings.HasSuffix(job.Content, "\n") {
				sb.WriteString("\n")
			}
		} else {
			fmt.Fprintf(&sb, "(logs unavailable: %s)\n", job.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// LogCollector fetches per-job logs once a run is terminal. The platform
// may lag between run completion and log availability, so fetches retry a
// bounded number of times with growing delays; exhausting the budget marks
// the job unavailable instead of failing the session.
type LogCollector struct {
	client   platform.Client
	clock    Clock
	attempts int
	log      *logrus.Entry
}

// NewLogCollector creates a LogCollector with a bounded attempt budget.
func NewLogCollector(client platform.Client, clock Clock, attempts int) *LogCollector {
	if attempts < 1 {
		attempts = 1
	}
	return &LogCollector{
		client:   client,
		clock:    clock,
		attempts: attempts,
		log:      logging.NewLogger("logs"),
	}
}

// Collect enumerates the run's jobs and assembles the bundle. The only
// error it returns is cancellation; missing logs degrade the bundle.
func (c *LogCollector) Collect(ctx context.Context, repo string, runID int64) (*LogBundle, error) {
	bundle := &LogBundle{RunID: runID}

	var jobs []platform.Job
	err := c.withRetries(ctx, func() error {
		var err error
		jobs, err = c.client.ListJobs(ctx, repo, runID)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return errors.New(errors.ErrCodeNotFound, "no jobs listed for run yet")
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return bundle, errors.Wrap(ctx.Err(), errors.ErrCodeTransient, "log collection interrupted")
		}
		c.log.WithError(err).Warn("could not enumerate jobs, bundle will be empty")
		return bundle, nil
	}

	for _, job := range jobs {
		entry := JobLog{
			JobID:      job.ID,
			Name:       job.Name,
			Status:     job.Status,
			Conclusion: job.Conclusion,
			Steps:      job.Steps,
		}

		var content string
		err := c.withRetries(ctx, func() error {
			var err error
			content, err = c.client.GetJobLogs(ctx, repo, job.ID)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				bundle.Jobs = append(bundle.Jobs, entry)
				return bundle, errors.Wrap(ctx.Err(), errors.ErrCodeTransient, "log collection interrupted")
			}
			entry.Error = err.Error()
			c.log.WithFields(logrus.Fields{"job": job.Name}).WithError(err).
				Warn("job logs unavailable after retries")
		} else {
			entry.Content = content
			entry.Available = true
		}

		bundle.Jobs = append(bundle.Jobs, entry)
	}

	c.log.WithFields(logrus.Fields{
		"run":      runID,
		"jobs":     len(bundle.Jobs),
		"complete": bundle.Complete(),
	}).Info("log bundle assembled")
	return bundle, nil
}

// withRetries runs fn up to the attempt budget, doubling the delay between
// attempts from one second.
func (c *LogCollector) withRetries(ctx context.Context, fn func() error) error {
	delay := time.Second

	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-c.clock.After(delay):
		}
		delay *= 2
	}
	return err
}
