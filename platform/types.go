package platform

import "time"

// Run statuses as reported by the platform.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Run conclusions. Only meaningful once status is StatusCompleted.
const (
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
	ConclusionTimedOut  = "timed_out"
	ConclusionUnknown   = "unknown"
)

// Run represents one execution instance of a triggered workflow.
type Run struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	HeadBranch   string    `json:"head_branch"`
	HeadSHA      string    `json:"head_sha"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	WorkflowName string    `json:"workflow_name"`
}

// Terminal reports whether no further status transition will occur.
func (r *Run) Terminal() bool {
	return r.Status == StatusCompleted
}

// Job is a single job within a run.
type Job struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Conclusion  string    `json:"conclusion"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Steps       []Step    `json:"steps"`
}

// Step is one step of a job, in platform-reported order.
type Step struct {
	Name       string `json:"name"`
	Number     int    `json:"number"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// Deployment is a deployment record created as a side effect of a run.
type Deployment struct {
	ID          int64  `json:"id"`
	Ref         string `json:"ref"`
	Environment string `json:"environment"`
}

// Credential describes an authenticated identity and its granted scopes.
type Credential struct {
	Login  string
	Scopes []string
}

// HasScope reports whether the credential carries the named scope.
func (c *Credential) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository is a repository reachable by the credential. Recon output.
type Repository struct {
	FullName      string `json:"full_name"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	Permissions   struct {
		Admin bool `json:"admin"`
		Push  bool `json:"push"`
		Pull  bool `json:"pull"`
	} `json:"permissions"`
}
