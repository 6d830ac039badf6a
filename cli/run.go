package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nopcorn/rascalrunner/config"
	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/platform"
	"github.com/nopcorn/rascalrunner/platform/github"
	"github.com/nopcorn/rascalrunner/session"
)

// NewRunCmd creates the run command, the full deploy/execute/cleanup cycle.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deploy a workflow, wait for its run, collect logs, clean up",
		Long: `Run executes one full session against the target repository: create a
temporary branch, commit the workflow file to it, wait for the triggered
run to reach a terminal state, download the job logs, and remove the
branch, the run record, and any deployments it created.

Interrupting a session (Ctrl-C) aborts the wait but still runs cleanup.

Examples:
  # Deploy payload.yml against an organization repository
  rascalrunner run -a $TOKEN -t acme/payroll -w payload.yml

  # Keep the run record visible, only wipe its logs
  rascalrunner run -a $TOKEN -t acme/payroll -w payload.yml --only-delete-logs`,
		RunE: runSession,
	}

	cmd.Flags().StringP("auth", "a", "", "Platform token (falls back to RASCAL_TOKEN)")
	cmd.Flags().StringP("target", "t", "", "Target repository in owner/repo form")
	cmd.Flags().StringP("workflow-file", "w", "", "Local workflow file to deploy")
	cmd.Flags().String("base-branch", "", "Branch to cut the temporary ref from (default: repository default branch)")
	cmd.Flags().String("branch-prefix", "", "Prefix for the generated branch name")
	cmd.Flags().StringP("commit-message", "m", "", "Commit message for the workflow commit")
	cmd.Flags().Bool("only-delete-logs", false, "Leave the run record visible, delete only its logs")
	cmd.Flags().Bool("keep-branch", false, "Defer branch deletion to final cleanup instead of removing it early")
	cmd.Flags().StringP("output", "o", "", "Path to write the collected logs to")
	cmd.Flags().Duration("discovery-timeout", 0, "How long to wait for the triggered run to appear")
	cmd.Flags().Duration("poll-interval", 0, "Delay between run status polls")
	cmd.Flags().Duration("max-wait", 0, "How long to wait for the run to finish")
	cmd.Flags().String("base-url", "", "Platform API base URL (for GitHub Enterprise)")

	return cmd
}

func runSession(cmd *cobra.Command, args []string) error {
	opts := GetOptions(cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if cfg.Target == "" {
		return errors.New(errors.ErrCodeInvalidInput, "no target repository given (use --target or rascal.yml)")
	}
	if cfg.WorkflowFile == "" {
		return errors.New(errors.ErrCodeInvalidInput, "no workflow file given (use --workflow-file or rascal.yml)")
	}

	authFlag, _ := cmd.Flags().GetString("auth")
	token := resolveToken(authFlag)
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "no credential given (use --auth or set RASCAL_TOKEN)")
	}

	client, err := newPlatformClient(cmd, cfg, token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := session.NewCoordinator(client, cfg).Execute(ctx)

	if opts.JSONOutput {
		fmt.Fprintln(cmd.OutOrStdout(), report.JSON())
	} else {
		fmt.Fprint(cmd.OutOrStdout(), report.Render())
	}
	return err
}

// applyRunFlags overlays explicitly set flags on the loaded configuration.
// Only flags the user actually passed override config values.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target, _ = flags.GetString(f.Name)
		case "workflow-file":
			cfg.WorkflowFile, _ = flags.GetString(f.Name)
		case "base-branch":
			cfg.BaseBranch, _ = flags.GetString(f.Name)
		case "branch-prefix":
			cfg.BranchPrefix, _ = flags.GetString(f.Name)
		case "commit-message":
			cfg.CommitMessage, _ = flags.GetString(f.Name)
		case "output":
			cfg.Output, _ = flags.GetString(f.Name)
		case "only-delete-logs":
			cfg.OnlyDeleteLogs, _ = flags.GetBool(f.Name)
		case "keep-branch":
			cfg.KeepBranchUntilCleanup, _ = flags.GetBool(f.Name)
		case "discovery-timeout":
			d, _ := flags.GetDuration(f.Name)
			cfg.Polling.DiscoveryTimeout = config.Duration(d)
		case "poll-interval":
			d, _ := flags.GetDuration(f.Name)
			cfg.Polling.PollInterval = config.Duration(d)
		case "max-wait":
			d, _ := flags.GetDuration(f.Name)
			cfg.Polling.MaxWait = config.Duration(d)
		}
	})
}

// newPlatformClient builds the GitHub client from the config's platform
// block, the retry settings, and any flag overrides.
func newPlatformClient(cmd *cobra.Command, cfg *config.Config, token string) (platform.Client, error) {
	var ghOpts github.Options
	if _, err := cfg.UnmarshalExtension("github", &ghOpts); err != nil {
		return nil, err
	}
	ghOpts.RequestTimeout = cfg.Client.RequestTimeout.Std()
	if cmd.Flags().Changed("base-url") {
		ghOpts.BaseURL, _ = cmd.Flags().GetString("base-url")
	}

	policy := platform.RetryPolicy{
		MaxAttempts:    cfg.Client.MaxAttempts,
		InitialBackoff: cfg.Client.InitialBackoff.Std(),
		MaxBackoff:     cfg.Client.MaxBackoff.Std(),
	}
	if policy.MaxAttempts == 0 {
		policy = platform.DefaultRetryPolicy()
	}

	return github.New(token, policy, ghOpts), nil
}
