// Package session implements the covert deployment engine: a single-shot
// state machine that creates a temporary branch, commits a workflow file,
// tracks the triggered run, collects its logs, and tears down every
// artifact it created regardless of how the forward phase exited.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nopcorn/rascalrunner/logging"
)

// Phase is the coordinator's position in the deployment lifecycle.
type Phase string

const (
	PhaseInit          Phase = "init"
	PhaseBranchCreated Phase = "branch_created"
	PhaseDeployed      Phase = "deployed"
	PhaseRunDiscovered Phase = "run_discovered"
	PhaseRunTerminal   Phase = "run_terminal"
	PhaseLogsCollected Phase = "logs_collected"
	PhaseCleaningUp    Phase = "cleaning_up"
	PhaseDone          Phase = "done"
)

// Session is one covert deployment attempt. It lives only in memory for the
// duration of a single invocation; nothing is persisted across runs.
type Session struct {
	ID              string
	Target          string
	BaseBranch      string
	Branch          string
	WorkflowPath    string
	WorkflowContent []byte
	CommitMessage   string
	CommitSHA       string
	StartedAt       time.Time

	Phase         Phase
	RunID         int64
	LastRunStatus string
	RunConclusion string

	Obligations *ObligationStack

	log *logrus.Entry
}

// NewSession creates a Session in PhaseInit.
func NewSession(target, baseBranch string, now time.Time) *Session {
	id := uuid.NewString()
	return &Session{
		ID:          id,
		Target:      target,
		BaseBranch:  baseBranch,
		StartedAt:   now,
		Phase:       PhaseInit,
		Obligations: NewObligationStack(),
		log:         logging.NewLogger("session").WithField("session", id[:8]),
	}
}

// SetPhase records a state machine transition.
func (s *Session) SetPhase(p Phase) {
	if s.Phase == p {
		return
	}
	s.log.WithFields(logrus.Fields{"from": s.Phase, "to": p}).Debug("phase transition")
	s.Phase = p
}
