package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tpcreds/internal/config"
)

func NewTeamIDCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	var appPath string

	cmd := &cobra.Command{
		Use:   "teamid",
		Short: "Print the code-signing team identifier of TablePlus",
		Long: `Print the TeamIdentifier codesign reports for the TablePlus bundle. This is
the value update writes into the keychain item's partition list; pin it with
--team-id or team_id to skip codesign on later runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			if appPath == "" {
				appPath = cfg.Definition.AppPath
			}

			resolver := newResolver(cfg, deps.executor(), cmd.ErrOrStderr())
			id, err := resolver.TeamID(cmd.Context(), appPath)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&appPath, "app-path", "", "Application bundle (default from settings)")

	return cmd
}
