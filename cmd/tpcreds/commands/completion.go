package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/tpcreds/internal/config"
)

// NewCompletionCommand creates the completion command for generating shell completions.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for tpcreds. Connection names are
completed from Connections.plist for --connection.

Bash (bash-completion@2 from Homebrew):
  $ tpcreds completion bash > "$(brew --prefix)/etc/bash_completion.d/tpcreds"

Zsh (Homebrew site-functions, already in fpath):
  $ tpcreds completion zsh > "$(brew --prefix)/share/zsh/site-functions/_tpcreds"

Fish:
  $ tpcreds completion fish > ~/.config/fish/completions/tpcreds.fish

Open a new shell afterwards.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			}
			return nil
		},
	}

	return cmd
}

// completeConnectionNames offers the connection names in Connections.plist.
// Errors complete nothing rather than failing the shell.
func completeConnectionNames(cfg *config.Config) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if err := cfg.Load(); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		store, err := newConnectionStore(cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		list, err := store.Load()
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		var names []string
		for _, r := range list {
			if strings.HasPrefix(r.Name(), toComplete) {
				names = append(names, r.Name())
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
