package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
	"github.com/nopcorn/rascalrunner/platform"
)

// Tracker discovers the run triggered by the deployment commit and follows
// it to a terminal state. Both loops are suspension points: cancellation is
// observed between polls, never waited out.
type Tracker struct {
	client platform.Client
	clock  Clock
	log    *logrus.Entry
}

// NewTracker creates a Tracker.
func NewTracker(client platform.Client, clock Clock) *Tracker {
	return &Tracker{
		client: client,
		clock:  clock,
		log:    logging.NewLogger("tracker"),
	}
}

// Discover polls the runs listed for the branch until one created at or
// after since appears, or the discovery timeout elapses. When several runs
// fall inside the window the earliest-created one wins. A timeout means the
// platform silently ignored the workflow and surfaces as RUN_NOT_FOUND.
func (t *Tracker) Discover(ctx context.Context, repo, branch string, since time.Time, timeout, interval time.Duration) (*platform.Run, error) {
	deadline := t.clock.Now().Add(timeout)

	for {
		runs, err := t.client.ListRunsForRef(ctx, repo, branch, since)
		if err != nil {
			return nil, err
		}

		if run := earliestMatch(runs, branch, since); run != nil {
			t.log.WithFields(logrus.Fields{
				"run":    run.ID,
				"branch": branch,
				"status": run.Status,
			}).Info("discovered triggered run")
			return run, nil
		}

		if !t.clock.Now().Add(interval).After(deadline) {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTransient, "run discovery interrupted")
			case <-t.clock.After(interval):
			}
			continue
		}

		return nil, errors.RunNotFound(branch, timeout)
	}
}

// AwaitTerminal polls the run's status at interval until it completes or
// maxWait elapses. Exceeding maxWait is not an error in the fatal sense: it
// returns RUN_TIMED_OUT carrying the last observed status so the caller can
// report it and still clean up the live run.
func (t *Tracker) AwaitTerminal(ctx context.Context, repo string, runID int64, interval, maxWait time.Duration) (*platform.Run, error) {
	deadline := t.clock.Now().Add(maxWait)
	lastStatus := platform.StatusQueued

	for {
		run, err := t.client.GetRun(ctx, repo, runID)
		if err != nil {
			return nil, err
		}
		lastStatus = run.Status

		if run.Terminal() {
			t.log.WithFields(logrus.Fields{
				"run":        run.ID,
				"conclusion": run.Conclusion,
			}).Info("run reached terminal state")
			return run, nil
		}

		if !t.clock.Now().Add(interval).After(deadline) {
			select {
			case <-ctx.Done():
				return run, errors.Wrap(ctx.Err(), errors.ErrCodeTransient, "run wait interrupted")
			case <-t.clock.After(interval):
			}
			continue
		}

		return run, errors.RunTimedOut(runID, lastStatus, maxWait)
	}
}

// earliestMatch picks the oldest run on the branch created in the window.
func earliestMatch(runs []platform.Run, branch string, since time.Time) *platform.Run {
	var best *platform.Run
	for i := range runs {
		run := &runs[i]
		if run.HeadBranch != branch {
			continue
		}
		// Platform timestamps have second granularity; a run created the
		// same second as the commit still counts.
		if run.CreatedAt.Before(since.Truncate(time.Second)) {
			continue
		}
		if best == nil || run.CreatedAt.Before(best.CreatedAt) {
			best = run
		}
	}
	return best
}
