package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/tpcreds/internal/config"
	"github.com/systmms/tpcreds/internal/keychain"
	"github.com/systmms/tpcreds/internal/updater"
)

type listEntry struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	User     string `json:"user"`
	Driver   string `json:"driver,omitempty"`
	Account  string `json:"account,omitempty"`
	Keychain string `json:"keychain"`
}

func NewListCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	var (
		jsonOutput bool
		noKeychain bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List TablePlus connections",
		Long: `List the connections in Connections.plist with their user name and
whether a password for them is stored in the keychain. Only item
attributes are read, so listing never triggers a keychain access prompt.

Examples:
  tpcreds list
  tpcreds list --json
  tpcreds list --no-keychain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}
			store, err := newConnectionStore(cfg)
			if err != nil {
				return err
			}
			list, err := store.Load()
			if err != nil {
				return err
			}

			def := cfg.Definition
			locator := keychain.NewLocator(deps.executor(), cfg.Logger)
			entries := make([]listEntry, 0, len(list))
			for _, r := range list {
				e := listEntry{
					Name:     r.Name(),
					ID:       r.ID(),
					User:     r.User(),
					Driver:   r.Driver(),
					Keychain: "-",
				}
				if account, err := updater.ExpandAccount(def.AccountTemplate, r); err == nil {
					e.Account = account
					if !noKeychain {
						e.Keychain = keychainState(cmd.Context(), locator, def.ServiceName, account, cfg)
					}
				}
				entries = append(entries, e)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "NAME\tID\tUSER\tKEYCHAIN\n")
			_, _ = fmt.Fprintf(w, "----\t--\t----\t--------\n")
			for _, e := range entries {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.ID, e.User, e.Keychain)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noKeychain, "no-keychain", false, "Skip keychain lookups")

	return cmd
}

func keychainState(ctx context.Context, l *keychain.Locator, service, account string, cfg *config.Config) string {
	ok, err := l.Exists(ctx, service, account)
	switch {
	case err != nil:
		if cfg.Logger != nil {
			cfg.Logger.Debug("Keychain lookup for %s/%s failed: %v", service, account, err)
		}
		return "unknown"
	case ok:
		return "stored"
	default:
		return "missing"
	}
}
