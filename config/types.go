package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml values like "30s" decode directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the full settings for one covert deployment session.
type Config struct {
	// Target repository in owner/repo form. Usually supplied by flag.
	Target string `yaml:"target" validate:"omitempty,contains=/"`

	// BaseBranch is the branch the temporary ref is cut from. Empty means
	// the repository's default branch.
	BaseBranch string `yaml:"base_branch"`

	// WorkflowFile is the local path of the workflow definition to deploy.
	WorkflowFile string `yaml:"workflow_file"`

	// BranchPrefix plus a random suffix forms the temporary branch name.
	BranchPrefix string `yaml:"branch_prefix" validate:"required"`

	// CommitMessage used for the workflow commit.
	CommitMessage string `yaml:"commit_message" validate:"required"`

	// OnlyDeleteLogs removes the run's logs during teardown but leaves the
	// run record visible.
	OnlyDeleteLogs bool `yaml:"only_delete_logs"`

	// KeepBranchUntilCleanup defers branch deletion to teardown instead of
	// deleting it as soon as a run is discovered. Needed on platforms that
	// refuse to delete a ref referenced by a live run.
	KeepBranchUntilCleanup bool `yaml:"keep_branch_until_cleanup"`

	// Output is the path the collected log bundle is written to. Empty means
	// a generated <repo>-<workflow>-<timestamp>.txt name in the cwd.
	Output string `yaml:"output"`

	Client  ClientConfig  `yaml:"client"`
	Polling PollingConfig `yaml:"polling"`
	Branch  BranchConfig  `yaml:"branch"`

	// Platforms holds platform-specific settings blocks, decoded on demand
	// with UnmarshalExtension.
	Platforms map[string]interface{} `yaml:"platforms"`
}

// ClientConfig bounds the platform client's retry behavior.
type ClientConfig struct {
	MaxAttempts    int      `yaml:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// PollingConfig bounds the run tracker and log collector loops.
type PollingConfig struct {
	DiscoveryTimeout Duration `yaml:"discovery_timeout"`
	PollInterval     Duration `yaml:"poll_interval"`
	MaxWait          Duration `yaml:"max_wait"`
	LogAttempts      int      `yaml:"log_attempts" validate:"min=1,max=20"`
}

// BranchConfig bounds temporary branch name generation.
type BranchConfig struct {
	MaxAttempts  int `yaml:"max_attempts" validate:"min=1,max=20"`
	SuffixLength int `yaml:"suffix_length" validate:"min=3,max=32"`
}

// Default returns a Config populated with the documented defaults. The
// intervals mirror the original tool's 3 second poll cadence.
func Default() *Config {
	return &Config{
		BranchPrefix:  "lint-testing-",
		CommitMessage: "testing out new linter workflow",
		Client: ClientConfig{
			MaxAttempts:    4,
			InitialBackoff: Duration(500 * time.Millisecond),
			MaxBackoff:     Duration(10 * time.Second),
			RequestTimeout: Duration(30 * time.Second),
		},
		Polling: PollingConfig{
			DiscoveryTimeout: Duration(60 * time.Second),
			PollInterval:     Duration(3 * time.Second),
			MaxWait:          Duration(300 * time.Second),
			LogAttempts:      5,
		},
		Branch: BranchConfig{
			MaxAttempts:  5,
			SuffixLength: 5,
		},
	}
}
