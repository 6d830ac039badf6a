package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nopcorn/rascalrunner/config"
)

func TestApplyRunFlagsOverlaysOnlyChangedFlags(t *testing.T) {
	cmd := NewRunCmd()
	require.NoError(t, cmd.Flags().Set("target", "acme/payroll"))
	require.NoError(t, cmd.Flags().Set("poll-interval", "7s"))
	require.NoError(t, cmd.Flags().Set("only-delete-logs", "true"))

	cfg := config.Default()
	cfg.CommitMessage = "from the config file"
	applyRunFlags(cmd, cfg)

	assert.Equal(t, "acme/payroll", cfg.Target)
	assert.Equal(t, 7*time.Second, cfg.Polling.PollInterval.Std())
	assert.True(t, cfg.OnlyDeleteLogs)
	assert.Equal(t, "from the config file", cfg.CommitMessage,
		"unset flags must not clobber config values")
	assert.Equal(t, "lint-testing-", cfg.BranchPrefix)
}

func TestResolveTokenPrefersFlagOverEnv(t *testing.T) {
	t.Setenv("RASCAL_TOKEN", "env-token")

	assert.Equal(t, "flag-token", resolveToken("flag-token"))
	assert.Equal(t, "env-token", resolveToken(""))
}

func TestRunRequiresTargetAndWorkflow(t *testing.T) {
	t.Setenv("RASCAL_TOKEN", "some-token")

	root := NewRootCommand()
	root.SetArgs([]string{"run", "--workflow-file", "payload.yml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}
