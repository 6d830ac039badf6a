package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nopcorn/rascalrunner/errors"
)

// Status is the three-way final outcome the process exit signal must
// distinguish.
type Status string

const (
	// StatusSuccess: run reached a terminal state, logs handled, all
	// obligations removed.
	StatusSuccess Status = "success"
	// StatusFailed: the operation failed or timed out, but teardown
	// removed everything that was created.
	StatusFailed Status = "failed"
	// StatusCleanupIncomplete: one or more obligations could not be
	// removed; manual intervention required.
	StatusCleanupIncomplete Status = "cleanup_incomplete"
)

// CleanupAction is one teardown step and its result.
type CleanupAction struct {
	Kind        ObligationKind `json:"kind"`
	Description string         `json:"description"`
	OK          bool           `json:"ok"`
	Error       string         `json:"error,omitempty"`
}

// Report is the coordinator's exit payload.
type Report struct {
	SessionID     string          `json:"session_id"`
	Target        string          `json:"target"`
	Branch        string          `json:"branch,omitempty"`
	CommitSHA     string          `json:"commit_sha,omitempty"`
	RunID         int64           `json:"run_id,omitempty"`
	RunConclusion string          `json:"run_conclusion,omitempty"`
	FinalPhase    Phase           `json:"final_phase"`
	ReachedPhase  Phase           `json:"reached_phase"`
	Status        Status          `json:"status"`
	FailureCode   errors.ErrorCode `json:"failure_code,omitempty"`
	Failure       string          `json:"failure,omitempty"`
	LogsCollected bool            `json:"logs_collected"`
	LogPath       string          `json:"log_path,omitempty"`
	Cleanup       []CleanupAction `json:"cleanup"`
	Remaining     []string        `json:"remaining,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`

	// Logs carries the bundle in memory for callers that want it beyond
	// the persisted file.
	Logs *LogBundle `json:"-"`
}

// JSON renders the report for machine consumption.
func (r *Report) JSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

// Render formats the report for a terminal.
func (r *Report) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "session %s against %s\n", r.SessionID[:8], r.Target)
	fmt.Fprintf(&sb, "  status:      %s\n", r.Status)
	fmt.Fprintf(&sb, "  final phase: %s (reached %s)\n", r.FinalPhase, r.ReachedPhase)
	if r.Branch != "" {
		fmt.Fprintf(&sb, "  branch:      %s\n", r.Branch)
	}
	if r.RunID != 0 {
		fmt.Fprintf(&sb, "  run:         %d (%s)\n", r.RunID, orDash(r.RunConclusion))
	}
	if r.Failure != "" {
		fmt.Fprintf(&sb, "  failure:     [%s] %s\n", r.FailureCode, r.Failure)
	}
	if r.LogsCollected {
		fmt.Fprintf(&sb, "  logs:        %s\n", orDash(r.LogPath))
	}

	if len(r.Cleanup) > 0 {
		sb.WriteString("  cleanup:\n")
		for _, action := range r.Cleanup {
			mark := "ok"
			if !action.OK {
				mark = "FAILED: " + action.Error
			}
			fmt.Fprintf(&sb, "    - %-40s %s\n", action.Description, mark)
		}
	}
	if len(r.Remaining) > 0 {
		sb.WriteString("  left behind (remove manually!):\n")
		for _, desc := range r.Remaining {
			fmt.Fprintf(&sb, "    - %s\n", desc)
		}
	}

	fmt.Fprintf(&sb, "  elapsed:     %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
