package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nopcorn/rascalrunner/config"
	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
	"github.com/nopcorn/rascalrunner/platform"
)

// Teardown gets its own context so user cancellation of the forward phase
// can never cancel cleanup.
const defaultCleanupTimeout = 2 * time.Minute

// Coordinator drives the full deployment lifecycle. The forward sequence is
// branch -> deploy -> discover -> await -> collect; teardown then runs
// unconditionally, whatever point the forward sequence stopped at.
type Coordinator struct {
	client         platform.Client
	cfg            *config.Config
	clock          Clock
	cleanupTimeout time.Duration
	log            *logrus.Entry
}

// NewCoordinator creates a Coordinator using the real clock.
func NewCoordinator(client platform.Client, cfg *config.Config) *Coordinator {
	return &Coordinator{
		client:         client,
		cfg:            cfg,
		clock:          SystemClock(),
		cleanupTimeout: defaultCleanupTimeout,
		log:            logging.NewLogger("session"),
	}
}

// Execute runs one covert deployment session to completion and returns its
// report. The returned error is nil only for a fully successful, fully
// cleaned session; a reportable failure (no run, timeout) comes back as its
// coded error with the report, and leftover obligations come back as
// CLEANUP_PARTIAL_FAILURE.
func (c *Coordinator) Execute(ctx context.Context) (*Report, error) {
	sess := NewSession(c.cfg.Target, c.cfg.BaseBranch, c.clock.Now())
	report := &Report{
		SessionID:    sess.ID,
		Target:       sess.Target,
		StartedAt:    sess.StartedAt,
		ReachedPhase: PhaseInit,
	}

	forwardErr := c.forward(ctx, sess, report)
	if forwardErr != nil {
		report.FailureCode = errors.GetCode(forwardErr)
		if report.FailureCode == "" {
			report.FailureCode = errors.ErrCodeInternal
		}
		report.Failure = forwardErr.Error()
		c.log.WithField("phase", sess.Phase).WithError(forwardErr).Warn("forward phase aborted")
	}

	c.teardown(sess, report)

	report.FinalPhase = sess.Phase
	report.FinishedAt = c.clock.Now()

	switch {
	case len(report.Remaining) > 0:
		report.Status = StatusCleanupIncomplete
		return report, errors.CleanupPartial(report.Remaining)
	case forwardErr != nil:
		report.Status = StatusFailed
		return report, forwardErr
	default:
		report.Status = StatusSuccess
		return report, nil
	}
}

func (c *Coordinator) forward(ctx context.Context, sess *Session, report *Report) error {
	if err := c.preflight(ctx, sess); err != nil {
		return err
	}

	branches := NewBranchManager(c.client, c.cfg.Branch, c.cfg.BranchPrefix)
	name, err := branches.Create(ctx, sess)
	if err != nil {
		return err
	}
	sess.Branch = name
	report.Branch = name
	c.advance(sess, report, PhaseBranchCreated)

	// The deploy timestamp anchors run discovery: only runs created at or
	// after it can be ours.
	since := c.clock.Now()

	sha, err := NewDeployer(c.client).Deploy(ctx, sess)
	if err != nil {
		return err
	}
	sess.CommitSHA = sha
	report.CommitSHA = sha
	c.advance(sess, report, PhaseDeployed)

	tracker := NewTracker(c.client, c.clock)
	run, err := tracker.Discover(ctx, sess.Target, sess.Branch, since,
		c.cfg.Polling.DiscoveryTimeout.Std(), c.cfg.Polling.PollInterval.Std())
	if err != nil {
		return err
	}
	sess.RunID = run.ID
	sess.LastRunStatus = run.Status
	report.RunID = run.ID
	c.advance(sess, report, PhaseRunDiscovered)
	c.registerRunObligations(sess)

	// Once a run exists the branch has served its purpose; deleting it now
	// shrinks the window an observer can see it in.
	if !c.cfg.KeepBranchUntilCleanup {
		c.deleteBranchEarly(ctx, sess, report)
	}

	run, err = tracker.AwaitTerminal(ctx, sess.Target, sess.RunID,
		c.cfg.Polling.PollInterval.Std(), c.cfg.Polling.MaxWait.Std())
	if run != nil {
		sess.LastRunStatus = run.Status
		sess.RunConclusion = run.Conclusion
		report.RunConclusion = run.Conclusion
	}
	if err != nil {
		return err
	}
	c.advance(sess, report, PhaseRunTerminal)

	collector := NewLogCollector(c.client, c.clock, c.cfg.Polling.LogAttempts)
	bundle, err := collector.Collect(ctx, sess.Target, sess.RunID)
	report.Logs = bundle
	if err != nil {
		return err
	}
	report.LogsCollected = true
	report.LogPath = c.persistLogs(sess, bundle)
	c.advance(sess, report, PhaseLogsCollected)

	return nil
}

// preflight validates the workflow file locally and checks the credential
// before anything is created remotely.
func (c *Coordinator) preflight(ctx context.Context, sess *Session) error {
	content, err := os.ReadFile(c.cfg.WorkflowFile)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeWorkflowInvalid, "couldn't open workflow file").
			WithDetail("path", c.cfg.WorkflowFile)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil || len(doc) == 0 {
		return errors.WorkflowInvalid(c.cfg.WorkflowFile, err)
	}
	sess.WorkflowPath = c.cfg.WorkflowFile
	sess.WorkflowContent = content
	sess.CommitMessage = c.cfg.CommitMessage

	cred, err := c.client.CheckCredential(ctx)
	if err != nil {
		return err
	}
	if len(cred.Scopes) == 0 {
		// Fine-grained tokens report no classic scopes; proceed and let
		// the API reject specific calls instead.
		c.log.Warn("could not determine token scopes")
	} else {
		for _, scope := range []string{"repo", "workflow"} {
			if !cred.HasScope(scope) {
				return errors.MissingScope(scope)
			}
		}
	}
	c.log.WithField("login", cred.Login).Info("authenticated to platform")
	return nil
}

func (c *Coordinator) advance(sess *Session, report *Report, p Phase) {
	sess.SetPhase(p)
	report.ReachedPhase = p
}

// registerRunObligations records the undo actions for the discovered run
// and for any deployment records its jobs create along the way.
func (c *Coordinator) registerRunObligations(sess *Session) {
	client := c.client
	target := sess.Target
	runID := sess.RunID
	branch := sess.Branch
	onlyLogs := c.cfg.OnlyDeleteLogs

	sess.Obligations.Add(Obligation{
		Kind:        ObligationRun,
		Description: fmt.Sprintf("run %d", runID),
		Remove: func(ctx context.Context) error {
			if sess.LastRunStatus != platform.StatusCompleted {
				if err := client.CancelRun(ctx, target, runID); err != nil {
					c.log.WithField("run", runID).WithError(err).Warn("could not cancel live run")
				} else {
					c.log.WithField("run", runID).Info("requested cancellation of live run")
					// Deletion is refused while the run winds down.
					select {
					case <-ctx.Done():
					case <-c.clock.After(c.cfg.Polling.PollInterval.Std()):
					}
				}
			}

			var err error
			if onlyLogs {
				err = client.DeleteRunLogs(ctx, target, runID)
			} else {
				err = client.DeleteRun(ctx, target, runID)
			}
			if err != nil && errors.GetCode(err) == errors.ErrCodeNotFound {
				return nil
			}
			return err
		},
	})

	sess.Obligations.Add(Obligation{
		Kind:        ObligationDeployments,
		Description: "deployments for " + branch,
		Remove: func(ctx context.Context) error {
			return c.sweepDeployments(ctx, target, branch)
		},
	})
}

// sweepDeployments deactivates and deletes every deployment record the run
// left behind on the temporary ref. Individual failures are aggregated so
// one stubborn deployment doesn't stop the sweep.
func (c *Coordinator) sweepDeployments(ctx context.Context, target, branch string) error {
	deployments, err := c.client.ListDeployments(ctx, target, branch)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodeNotFound {
			return nil
		}
		return err
	}
	if len(deployments) == 0 {
		return nil
	}
	c.log.WithField("count", len(deployments)).Info("removing deployments left by the run")

	var failed []string
	for _, d := range deployments {
		if err := c.client.DeactivateDeployment(ctx, target, d.ID); err != nil {
			c.log.WithField("deployment", d.ID).WithError(err).Warn("could not deactivate deployment")
		}
		if err := c.client.DeleteDeployment(ctx, target, d.ID); err != nil {
			failed = append(failed, fmt.Sprintf("%d: %v", d.ID, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("could not delete deployment(s) %s", strings.Join(failed, "; "))
	}
	return nil
}

// deleteBranchEarly resolves the branch obligation ahead of teardown. On
// failure the obligation goes back on the stack at its original position so
// the branch is still deleted last.
func (c *Coordinator) deleteBranchEarly(ctx context.Context, sess *Session, report *Report) {
	ob := sess.Obligations.Resolve(ObligationBranch)
	if ob == nil {
		return
	}
	if err := ob.Remove(ctx); err != nil {
		c.log.WithError(err).Warn("early branch deletion failed, deferring to teardown")
		sess.Obligations.Restore(*ob)
		return
	}
	report.Cleanup = append(report.Cleanup, CleanupAction{
		Kind:        ObligationBranch,
		Description: ob.Description + " (removed early)",
		OK:          true,
	})
}

// teardown drains the obligation stack in reverse creation order. It never
// raises: every failure is recorded in the report and the next obligation
// is still attempted. Running it on an already-drained session is a no-op.
func (c *Coordinator) teardown(sess *Session, report *Report) {
	obligations := sess.Obligations.Drain()
	if len(obligations) == 0 && sess.Phase == PhaseDone {
		return
	}

	sess.SetPhase(PhaseCleaningUp)

	ctx, cancel := context.WithTimeout(context.Background(), c.cleanupTimeout)
	defer cancel()

	for _, ob := range obligations {
		action := CleanupAction{Kind: ob.Kind, Description: ob.Description, OK: true}
		if err := ob.Remove(ctx); err != nil {
			action.OK = false
			action.Error = err.Error()
			report.Remaining = append(report.Remaining, ob.Description)
			c.log.WithField("obligation", ob.Description).WithError(err).
				Error("cleanup obligation failed - manual removal required")
		}
		report.Cleanup = append(report.Cleanup, action)
	}

	sess.SetPhase(PhaseDone)
}

// persistLogs writes the bundle next to the operator, named after the
// target and workflow like the report they came from.
func (c *Coordinator) persistLogs(sess *Session, bundle *LogBundle) string {
	if len(bundle.Jobs) == 0 {
		return ""
	}

	path := c.cfg.Output
	if path == "" {
		repoName := sess.Target[strings.LastIndex(sess.Target, "/")+1:]
		workflow := strings.TrimSuffix(filepath.Base(sess.WorkflowPath), filepath.Ext(sess.WorkflowPath))
		path = fmt.Sprintf("%s-%s-%d.txt", repoName, workflow, c.clock.Now().Unix())
	}

	if err := os.WriteFile(path, []byte(bundle.Render()), 0600); err != nil {
		c.log.WithError(err).Warn("could not persist log bundle")
		return ""
	}
	c.log.WithField("path", path).Info("wrote run logs")
	return path
}
