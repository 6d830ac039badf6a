package cli

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nopcorn/rascalrunner/config"
	"github.com/nopcorn/rascalrunner/logging"
)

// CommandOptions holds the options shared by all subcommands.
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewRootCommand creates the root command with the standard persistent flags.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rascalrunner",
		Short: "Deploy a workflow to a repository, capture its output, and remove every trace",
		Long: `rascalrunner commits a workflow file to a short-lived branch of a target
repository, waits for the triggered run to finish, downloads its logs, and
then deletes the branch, the run record, and any deployments the run
created. Intended for authorized red-team engagements.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logging.SetLevel(logrus.DebugLevel)
			}
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				logging.UseJSONFormatter()
			}
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to rascal.yml config file")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewReconCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// GetOptions extracts the shared options from a command.
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// loadConfig resolves the configuration for a command: an explicit --config
// path must exist, otherwise rascal.yml is searched for upward from the
// working directory and defaults apply when none is found.
func loadConfig(opts CommandOptions) (*config.Config, error) {
	if opts.ConfigFile != "" {
		return config.Load(opts.ConfigFile)
	}
	return config.LoadDefault()
}

// resolveToken returns the credential from the flag or the RASCAL_TOKEN
// environment variable, flag winning.
func resolveToken(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("RASCAL_TOKEN")
}
