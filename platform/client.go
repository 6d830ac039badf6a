// Package platform defines the contract between the session engine and a
// source-control hosting platform. Implementations live in subpackages and
// must classify every failure with a code from the errors package; a non-2xx
// response is never swallowed.
package platform

import (
	"context"
	"time"
)

// Client is the typed surface the session engine drives. Operations are
// issued sequentially: request ordering (commit before discovery) is a
// correctness dependency.
type Client interface {
	// CheckCredential verifies the bearer credential and reports its
	// identity and granted scopes.
	CheckCredential(ctx context.Context) (*Credential, error)

	// DefaultBranch returns the repository's default branch name.
	DefaultBranch(ctx context.Context, repo string) (string, error)

	// GetBranchSHA resolves a branch name to its current commit SHA.
	GetBranchSHA(ctx context.Context, repo, branch string) (string, error)

	// CreateRef creates a new branch pointing at sha. A name collision
	// surfaces as a PERMANENT_CLIENT_ERROR; the caller regenerates.
	CreateRef(ctx context.Context, repo, branch, sha string) error

	// CommitFile commits content to path on branch and returns the commit
	// SHA. Server-side validation failures surface as
	// PERMANENT_CLIENT_ERROR and are not retried.
	CommitFile(ctx context.Context, repo, branch, path string, content []byte, message string) (string, error)

	// ListRunsForRef lists workflow runs for a branch created at or after
	// since, newest first as reported by the platform.
	ListRunsForRef(ctx context.Context, repo, branch string, since time.Time) ([]Run, error)

	// GetRun fetches a single run by id.
	GetRun(ctx context.Context, repo string, runID int64) (*Run, error)

	// CancelRun requests cancellation of a live run.
	CancelRun(ctx context.Context, repo string, runID int64) error

	// DeleteRun removes a run record entirely.
	DeleteRun(ctx context.Context, repo string, runID int64) error

	// DeleteRunLogs removes only the run's logs, leaving the record.
	DeleteRunLogs(ctx context.Context, repo string, runID int64) error

	// ListJobs enumerates the jobs of a run in platform order.
	ListJobs(ctx context.Context, repo string, runID int64) ([]Job, error)

	// GetJobLogs fetches the plain-text log of one job.
	GetJobLogs(ctx context.Context, repo string, jobID int64) (string, error)

	// DeleteRef deletes a branch. NotFound means it is already gone and is
	// the caller's business to tolerate.
	DeleteRef(ctx context.Context, repo, branch string) error

	// ListDeployments lists deployment records created for a ref.
	ListDeployments(ctx context.Context, repo, ref string) ([]Deployment, error)

	// DeactivateDeployment marks a deployment inactive, which some
	// platforms require before deletion.
	DeactivateDeployment(ctx context.Context, repo string, deploymentID int64) error

	// DeleteDeployment removes a deployment record.
	DeleteDeployment(ctx context.Context, repo string, deploymentID int64) error

	// ListRepositories lists repositories the credential can reach, with
	// permission levels. Used by recon only.
	ListRepositories(ctx context.Context) ([]Repository, error)
}
