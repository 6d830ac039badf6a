package session

import (
	"context"
	"sync"
	"time"

	"github.com/nopcorn/rascalrunner/platform"
)

// fakeClock drives polling loops deterministically. In auto-advance mode
// After consumes the delay instantly and moves Now forward; in hold mode
// After never fires, so only cancellation can unblock a poll.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	hold  bool
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	if c.hold {
		return make(chan time.Time)
	}
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// fakePlatform is a scriptable platform.Client. Every hook has a benign
// default so tests only script what they care about; calls records the
// operation order.
type fakePlatform struct {
	mu    sync.Mutex
	calls []string

	branch string // captured from CreateRef

	scopes          []string
	createRefErr    func(attempt int) error
	commitErr       error
	listRuns        func(call int) ([]platform.Run, error)
	getRun          func(call int) (*platform.Run, error)
	cancelRunErr    error
	deleteRunErr    error
	deleteRunLogErr error
	deleteRefErr    error
	jobs            []platform.Job
	jobLogs         func(jobID int64) (string, error)
	deployments     []platform.Deployment
	deleteDeployErr func(deploymentID int64) error

	createRefCalls int
	listRunCalls   int
	getRunCalls    int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{scopes: []string{"repo", "workflow"}}
}

func (f *fakePlatform) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakePlatform) callsOf(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakePlatform) CheckCredential(ctx context.Context) (*platform.Credential, error) {
	f.record("check_credential")
	return &platform.Credential{Login: "octocat", Scopes: f.scopes}, nil
}

func (f *fakePlatform) DefaultBranch(ctx context.Context, repo string) (string, error) {
	f.record("default_branch")
	return "main", nil
}

func (f *fakePlatform) GetBranchSHA(ctx context.Context, repo, branch string) (string, error) {
	f.record("get_branch_sha")
	return "basesha", nil
}

func (f *fakePlatform) CreateRef(ctx context.Context, repo, branch, sha string) error {
	f.record("create_ref")
	f.createRefCalls++
	if f.createRefErr != nil {
		if err := f.createRefErr(f.createRefCalls); err != nil {
			return err
		}
	}
	f.branch = branch
	return nil
}

func (f *fakePlatform) CommitFile(ctx context.Context, repo, branch, path string, content []byte, message string) (string, error) {
	f.record("commit_file")
	if f.commitErr != nil {
		return "", f.commitErr
	}
	return "deadbeef", nil
}

func (f *fakePlatform) ListRunsForRef(ctx context.Context, repo, branch string, since time.Time) ([]platform.Run, error) {
	f.record("list_runs")
	f.listRunCalls++
	if f.listRuns != nil {
		return f.listRuns(f.listRunCalls)
	}
	return nil, nil
}

func (f *fakePlatform) GetRun(ctx context.Context, repo string, runID int64) (*platform.Run, error) {
	f.record("get_run")
	f.getRunCalls++
	if f.getRun != nil {
		return f.getRun(f.getRunCalls)
	}
	return &platform.Run{ID: runID, Status: platform.StatusCompleted, Conclusion: platform.ConclusionSuccess}, nil
}

func (f *fakePlatform) CancelRun(ctx context.Context, repo string, runID int64) error {
	f.record("cancel_run")
	return f.cancelRunErr
}

func (f *fakePlatform) DeleteRun(ctx context.Context, repo string, runID int64) error {
	f.record("delete_run")
	return f.deleteRunErr
}

func (f *fakePlatform) DeleteRunLogs(ctx context.Context, repo string, runID int64) error {
	f.record("delete_run_logs")
	return f.deleteRunLogErr
}

func (f *fakePlatform) ListJobs(ctx context.Context, repo string, runID int64) ([]platform.Job, error) {
	f.record("list_jobs")
	return f.jobs, nil
}

func (f *fakePlatform) GetJobLogs(ctx context.Context, repo string, jobID int64) (string, error) {
	f.record("get_job_logs")
	if f.jobLogs != nil {
		return f.jobLogs(jobID)
	}
	return "log line\n", nil
}

func (f *fakePlatform) DeleteRef(ctx context.Context, repo, branch string) error {
	f.record("delete_ref")
	return f.deleteRefErr
}

func (f *fakePlatform) ListDeployments(ctx context.Context, repo, ref string) ([]platform.Deployment, error) {
	f.record("list_deployments")
	return f.deployments, nil
}

func (f *fakePlatform) DeactivateDeployment(ctx context.Context, repo string, deploymentID int64) error {
	f.record("deactivate_deployment")
	return nil
}

func (f *fakePlatform) DeleteDeployment(ctx context.Context, repo string, deploymentID int64) error {
	f.record("delete_deployment")
	if f.deleteDeployErr != nil {
		return f.deleteDeployErr(deploymentID)
	}
	return nil
}

func (f *fakePlatform) ListRepositories(ctx context.Context) ([]platform.Repository, error) {
	f.record("list_repositories")
	return nil, nil
}

var _ platform.Client = (*fakePlatform)(nil)
