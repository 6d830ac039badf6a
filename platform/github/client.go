// Package github implements the platform client against the GitHub REST
// API. It works with github.com and GitHub Enterprise Server (set BaseURL
// to https://<host>/api/v3).
package github

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
	"github.com/nopcorn/rascalrunner/platform"
)

const defaultBaseURL = "https://api.github.com"

// Options configures a Client beyond the credential itself. Decoded from
// the config's "github" platform block.
type Options struct {
	BaseURL            string `yaml:"base_url"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	RequestTimeout     time.Duration
}

// Client issues authenticated GitHub REST requests with classification and
// retry. It implements platform.Client.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retrier *platform.Retrier
	log     *logrus.Entry
}

var _ platform.Client = (*Client)(nil)

// New creates a Client. The credential is passed in explicitly; there is no
// ambient token state.
func New(token string, policy platform.RetryPolicy, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	transport := http.DefaultTransport
	if opts.InsecureSkipVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		retrier: platform.NewRetrier(policy),
		log:     logging.NewLogger("github"),
	}
}

// response carries what classification and decoding need after a request.
type response struct {
	status int
	header http.Header
	body   []byte
}

// doJSON runs one request through the retrier, decoding a JSON body into
// out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	return c.retrier.Do(ctx, method+" "+path, func() error {
		resp, err := c.request(ctx, method, path, payload)
		if err != nil {
			return err
		}
		if out == nil || len(resp.body) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.body, out); err != nil {
			return errors.Wrap(err, errors.ErrCodePermanentClient, "failed to decode platform response").
				WithDetail("path", path)
		}
		return nil
	})
}

// request issues a single attempt and classifies the outcome.
func (c *Client) request(ctx context.Context, method, path string, payload interface{}) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode request payload")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("platform request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Transient(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transient(err)
	}

	r := &response{status: resp.StatusCode, header: resp.Header, body: data}
	if err := classify(r); err != nil {
		return nil, err
	}
	return r, nil
}

// classify maps a response to the failure taxonomy. 2xx passes through;
// everything else becomes a coded error carrying the platform's message.
func classify(r *response) error {
	if r.status >= 200 && r.status < 300 {
		return nil
	}

	message := apiMessage(r.body)

	switch {
	case r.status == http.StatusUnauthorized:
		return errors.AuthDenied(message)
	case r.status == http.StatusForbidden:
		if rateLimited(r) {
			return errors.RateLimited(retryAfter(r))
		}
		return errors.AuthDenied(message)
	case r.status == http.StatusNotFound || r.status == http.StatusGone:
		return errors.New(errors.ErrCodeNotFound, message).WithDetail("status", r.status)
	case r.status == http.StatusTooManyRequests:
		return errors.RateLimited(retryAfter(r))
	case r.status >= 500:
		return errors.Transient(fmt.Errorf("server error %d: %s", r.status, message))
	default:
		return errors.New(errors.ErrCodePermanentClient, message).WithDetail("status", r.status)
	}
}

// apiMessage pulls the human-readable message out of a GitHub error body.
func apiMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return strings.TrimSpace(string(body))
	}
	if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
		return parsed.Message + ": " + parsed.Errors[0].Message
	}
	return parsed.Message
}

func rateLimited(r *response) bool {
	return r.header.Get("Retry-After") != "" || r.header.Get("X-RateLimit-Remaining") == "0"
}

// retryAfter reads the platform's retry hint: a Retry-After delay in
// seconds, or the X-RateLimit-Reset epoch timestamp.
func retryAfter(r *response) time.Duration {
	if raw := r.header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if raw := r.header.Get("X-RateLimit-Reset"); raw != "" {
		if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if until := time.Until(time.Unix(epoch, 0)); until > 0 {
				return until
			}
		}
	}
	return time.Second
}

// repoPath validates and splits an owner/repo identifier into a URL path.
func repoPath(repo string) (string, error) {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("target '%s' must be in owner/repo format", repo))
	}
	return "/repos/" + url.PathEscape(parts[0]) + "/" + url.PathEscape(parts[1]), nil
}

// CheckCredential verifies the token and reports its login and OAuth scopes.
func (c *Client) CheckCredential(ctx context.Context) (*platform.Credential, error) {
	var cred platform.Credential

	err := c.retrier.Do(ctx, "GET /user", func() error {
		resp, err := c.request(ctx, http.MethodGet, "/user", nil)
		if err != nil {
			return err
		}

		var user struct {
			Login string `json:"login"`
		}
		if err := json.Unmarshal(resp.body, &user); err != nil {
			return errors.Wrap(err, errors.ErrCodePermanentClient, "failed to decode user response")
		}

		cred.Login = user.Login
		cred.Scopes = cred.Scopes[:0]
		for _, scope := range strings.Split(resp.header.Get("X-OAuth-Scopes"), ",") {
			if s := strings.TrimSpace(scope); s != "" {
				cred.Scopes = append(cred.Scopes, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// DefaultBranch returns the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context, repo string) (string, error) {
	base, err := repoPath(repo)
	if err != nil {
		return "", err
	}

	var out struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := c.doJSON(ctx, http.MethodGet, base, nil, &out); err != nil {
		return "", err
	}
	return out.DefaultBranch, nil
}

// GetBranchSHA resolves a branch to its head commit SHA.
func (c *Client) GetBranchSHA(ctx context.Context, repo, branch string) (string, error) {
	base, err := repoPath(repo)
	if err != nil {
		return "", err
	}

	var out struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := base + "/git/ref/heads/" + url.PathEscape(branch)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	return out.Object.SHA, nil
}

// CreateRef creates refs/heads/<branch> at sha.
func (c *Client) CreateRef(ctx context.Context, repo, branch, sha string) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}

	payload := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	return c.doJSON(ctx, http.MethodPost, base+"/git/refs", payload, nil)
}

// CommitFile creates or updates path on branch through the contents API and
// returns the resulting commit SHA. This single call is what triggers the
// platform's workflow detection.
func (c *Client) CommitFile(ctx context.Context, repo, branch, path string, content []byte, message string) (string, error) {
	base, err := repoPath(repo)
	if err != nil {
		return "", err
	}

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}

	var out struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	endpoint := base + "/contents/" + escapePath(path)
	if err := c.doJSON(ctx, http.MethodPut, endpoint, payload, &out); err != nil {
		return "", err
	}
	return out.Commit.SHA, nil
}

// ListRunsForRef lists workflow runs for a branch created at or after since.
func (c *Client) ListRunsForRef(ctx context.Context, repo, branch string, since time.Time) ([]platform.Run, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("branch", branch)
	query.Set("per_page", "50")
	if !since.IsZero() {
		query.Set("created", ">="+since.UTC().Format(time.RFC3339))
	}

	var out struct {
		WorkflowRuns []struct {
			ID         int64     `json:"id"`
			Name       string    `json:"name"`
			HeadBranch string    `json:"head_branch"`
			HeadSHA    string    `json:"head_sha"`
			Status     string    `json:"status"`
			Conclusion string    `json:"conclusion"`
			CreatedAt  time.Time `json:"created_at"`
			UpdatedAt  time.Time `json:"updated_at"`
		} `json:"workflow_runs"`
	}
	path := base + "/actions/runs?" + query.Encode()
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	runs := make([]platform.Run, 0, len(out.WorkflowRuns))
	for _, r := range out.WorkflowRuns {
		runs = append(runs, platform.Run{
			ID:           r.ID,
			Name:         r.Name,
			HeadBranch:   r.HeadBranch,
			HeadSHA:      r.HeadSHA,
			Status:       r.Status,
			Conclusion:   r.Conclusion,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
			WorkflowName: r.Name,
		})
	}
	return runs, nil
}

// GetRun fetches one run.
func (c *Client) GetRun(ctx context.Context, repo string, runID int64) (*platform.Run, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	var out platform.Run
	path := fmt.Sprintf("%s/actions/runs/%d", base, runID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelRun asks the platform to cancel a live run.
func (c *Client) CancelRun(ctx context.Context, repo string, runID int64) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, fmt.Sprintf("%s/actions/runs/%d/cancel", base, runID), nil, nil)
}

// DeleteRun removes the run record from the platform's UI and API.
func (c *Client) DeleteRun(ctx context.Context, repo string, runID int64) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/actions/runs/%d", base, runID), nil, nil)
}

// DeleteRunLogs removes only the logs of a run.
func (c *Client) DeleteRunLogs(ctx context.Context, repo string, runID int64) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/actions/runs/%d/logs", base, runID), nil, nil)
}

// ListJobs enumerates the jobs of a run in the platform's order.
func (c *Client) ListJobs(ctx context.Context, repo string, runID int64) ([]platform.Job, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	var out struct {
		Jobs []platform.Job `json:"jobs"`
	}
	path := fmt.Sprintf("%s/actions/runs/%d/jobs?per_page=100", base, runID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJobLogs fetches the plain-text log of one job. The endpoint redirects
// to short-lived blob storage; the default client follows it.
func (c *Client) GetJobLogs(ctx context.Context, repo string, jobID int64) (string, error) {
	base, err := repoPath(repo)
	if err != nil {
		return "", err
	}

	var logs string
	path := fmt.Sprintf("%s/actions/jobs/%d/logs", base, jobID)
	err = c.retrier.Do(ctx, "GET "+path, func() error {
		resp, err := c.request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		logs = string(resp.body)
		return nil
	})
	if err != nil {
		return "", err
	}
	return logs, nil
}

// DeleteRef deletes refs/heads/<branch>.
func (c *Client) DeleteRef(ctx context.Context, repo, branch string) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, base+"/git/refs/heads/"+url.PathEscape(branch), nil, nil)
}

// ListDeployments lists deployment records created for a ref.
func (c *Client) ListDeployments(ctx context.Context, repo, ref string) ([]platform.Deployment, error) {
	base, err := repoPath(repo)
	if err != nil {
		return nil, err
	}

	var out []platform.Deployment
	path := base + "/deployments?ref=" + url.QueryEscape(ref)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeactivateDeployment marks a deployment inactive. GitHub refuses to
// delete an active deployment, so this always precedes DeleteDeployment.
func (c *Client) DeactivateDeployment(ctx context.Context, repo string, deploymentID int64) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}
	payload := map[string]string{"state": "inactive"}
	path := fmt.Sprintf("%s/deployments/%d/statuses", base, deploymentID)
	return c.doJSON(ctx, http.MethodPost, path, payload, nil)
}

// DeleteDeployment removes a deployment record.
func (c *Client) DeleteDeployment(ctx context.Context, repo string, deploymentID int64) error {
	base, err := repoPath(repo)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/deployments/%d", base, deploymentID), nil, nil)
}

// ListRepositories lists repositories the credential can reach.
func (c *Client) ListRepositories(ctx context.Context) ([]platform.Repository, error) {
	var out []platform.Repository
	if err := c.doJSON(ctx, http.MethodGet, "/user/repos?per_page=100&sort=updated", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// escapePath escapes each segment of a repository file path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
