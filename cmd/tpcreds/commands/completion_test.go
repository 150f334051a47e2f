package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(e *env) *cobra.Command {
	root := &cobra.Command{Use: "tpcreds"}
	root.AddCommand(NewCompletionCommand(), NewUpdateCommand(e.cfg, e.deps), NewListCommand(e.cfg, e.deps))
	return root
}

func TestCompletionCommand_Shells(t *testing.T) {
	tests := []struct {
		shell string
		want  string
	}{
		{shell: "bash", want: "__tpcreds_"},
		{shell: "zsh", want: "#compdef tpcreds"},
		{shell: "fish", want: "complete -c tpcreds"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			e := newEnv(t, nil)
			out, _, err := run(t, newRoot(e), "", "completion", tt.shell)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestCompletionCommand_RejectsUnknownShell(t *testing.T) {
	e := newEnv(t, nil)
	_, _, err := run(t, newRoot(e), "", "completion", "powershell")
	require.Error(t, err)
}

func TestUpdateCommand_CompletesConnectionNames(t *testing.T) {
	e := newEnv(t, nil)

	out, _, err := run(t, newRoot(e), "", cobra.ShellCompRequestCmd, "update", "--connection", "Pr")
	require.NoError(t, err)
	assert.Contains(t, out, "Prod\n")
	assert.NotContains(t, out, "Staging")
	assert.Equal(t, 0, e.mock.CallCount())
}
