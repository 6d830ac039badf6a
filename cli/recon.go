package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/platform"
)

// NewReconCmd creates the recon command: inspect what a credential can reach
// before committing to a run.
func NewReconCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recon",
		Short: "Show the credential's identity, scopes, and reachable repositories",
		Long: `Recon authenticates with the given token and reports its login, granted
scopes, and the repositories it can reach. By default only repositories
the credential can push to are listed, since those are the viable targets.

Examples:
  # List pushable repositories for a captured token
  rascalrunner recon -a $TOKEN

  # Include read-only repositories too
  rascalrunner recon -a $TOKEN --show-all`,
		RunE: runRecon,
	}

	cmd.Flags().StringP("auth", "a", "", "Platform token (falls back to RASCAL_TOKEN)")
	cmd.Flags().Bool("show-all", false, "Include repositories without push access")
	cmd.Flags().String("base-url", "", "Platform API base URL (for GitHub Enterprise)")

	return cmd
}

type reconResult struct {
	Login        string                `json:"login"`
	Scopes       []string              `json:"scopes"`
	CanDeploy    bool                  `json:"can_deploy"`
	Repositories []platform.Repository `json:"repositories"`
}

// newReconResult filters the repository list down to viable targets unless
// showAll is set. A target is viable when the credential can push to it.
func newReconResult(cred *platform.Credential, repos []platform.Repository, showAll bool) reconResult {
	if !showAll {
		pushable := make([]platform.Repository, 0, len(repos))
		for _, r := range repos {
			if r.Permissions.Push {
				pushable = append(pushable, r)
			}
		}
		repos = pushable
	}

	return reconResult{
		Login:        cred.Login,
		Scopes:       cred.Scopes,
		CanDeploy:    cred.HasScope("repo") && cred.HasScope("workflow"),
		Repositories: repos,
	}
}

func runRecon(cmd *cobra.Command, args []string) error {
	opts := GetOptions(cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
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

	cred, err := client.CheckCredential(ctx)
	if err != nil {
		return err
	}

	repos, err := client.ListRepositories(ctx)
	if err != nil {
		return err
	}

	showAll, _ := cmd.Flags().GetBool("show-all")
	result := newReconResult(cred, repos, showAll)

	if opts.JSONOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to encode recon result")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "login:  %s\n", result.Login)
	fmt.Fprintf(out, "scopes: %s\n", strings.Join(result.Scopes, ", "))
	if !result.CanDeploy {
		fmt.Fprintln(out, "note:   token lacks repo+workflow scopes, run will be refused")
	}

	if len(repos) == 0 {
		fmt.Fprintln(out, "no matching repositories")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nREPOSITORY\tVISIBILITY\tDEFAULT\tACCESS")
	for _, r := range repos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.FullName, visibility(r.Private), r.DefaultBranch, access(r))
	}
	return w.Flush()
}

func visibility(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

func access(r platform.Repository) string {
	switch {
	case r.Permissions.Admin:
		return "admin"
	case r.Permissions.Push:
		return "push"
	default:
		return "pull"
	}
}
