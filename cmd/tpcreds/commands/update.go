package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/tpcreds/internal/config"
	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/keychain"
	"github.com/systmms/tpcreds/internal/prompt"
	"github.com/systmms/tpcreds/internal/updater"
)

func NewUpdateCommand(cfg *config.Config, deps *Deps) *cobra.Command {
	var (
		connection        string
		username          string
		password          string
		create            bool
		teamID            string
		includeSystemTool bool
		verifyLogin       bool
		verifyStored      bool
		from              string
		keychainPwFile    string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Replace a connection's user name and password",
		Long: `Replace the user name of a TablePlus connection and store its new password
in the login keychain.

The password is written to the keychain first, and the item's partition list
is reset so TablePlus can read it without a prompt. Connections.plist is then
replaced as a whole, which TablePlus picks up even while it is running.

Examples:
  # Rotate one connection, prompting for the password
  tpcreds update --connection Prod --username app_rw

  # Scripted, with the keychain password on stdin
  tpcreds update --connection Prod --username app_rw --password "$PW" \
    --non-interactive --keychain-password-file - <<<"$LOGIN_PW"

  # Several connections from a file
  tpcreds update --from rotate.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.checkPlatform(); err != nil {
				return err
			}
			if from != "" && (connection != "" || username != "" || cmd.Flags().Changed("password")) {
				return dserrors.UserError{
					Message:    "--from cannot be combined with --connection, --username or --password",
					Suggestion: "Put every connection in the batch file",
				}
			}

			if err := cfg.Load(); err != nil {
				return err
			}
			def := cfg.Definition

			if cmd.Flags().Changed("team-id") {
				def.TeamID = teamID
			}
			if cmd.Flags().Changed("include-system-tool") {
				def.IncludeSystemTool = includeSystemTool
			}
			if cmd.Flags().Changed("verify-login") {
				def.VerifyLogin = verifyLogin
			}
			if cmd.Flags().Changed("verify-stored") {
				def.VerifyStored = verifyStored
			}
			if def.VerifyStored && !def.IncludeSystemTool {
				return dserrors.ConfigError{
					Field:      "verify_stored",
					Message:    "reading the password back needs the security tool in the item's partition list",
					Suggestion: "Also set include_system_tool: true or pass --include-system-tool",
				}
			}

			requests, err := buildRequests(cmd, cfg, deps, from, updater.Request{
				ConnectionName: connection,
				Username:       username,
				Password:       password,
				Create:         create,
			})
			if err != nil {
				return err
			}

			var inner prompt.CredentialProvider
			switch {
			case keychainPwFile != "":
				inner = prompt.FileProvider{Path: keychainPwFile, Stdin: cmd.InOrStdin()}
			case cfg.NonInteractive:
				inner = prompt.NonInteractiveProvider{}
			default:
				inner = deps.terminal()
			}
			credentials := prompt.NewCachingProvider(inner)
			defer credentials.Forget()

			stderr := cmd.ErrOrStderr()
			executor := deps.executor()

			writerOpts := []keychain.WriterOption{
				keychain.WithStderr(stderr),
				keychain.WithSystemToolPartition(def.IncludeSystemTool),
				keychain.WithLogger(cfg.Logger),
			}
			if tool := def.Tools.Security; tool != "" {
				writerOpts = append(writerOpts, keychain.WithTool(tool))
			}
			writer := keychain.NewWriter(executor, newResolver(cfg, executor, stderr), credentials, writerOpts...)

			store, err := newConnectionStore(cfg)
			if err != nil {
				return err
			}

			opts := []updater.Option{
				updater.WithMetrics(deps.Metrics),
				updater.WithLogger(cfg.Logger),
			}
			if def.VerifyLogin {
				opts = append(opts, updater.WithLoginChecker(deps.checker(def)))
			}
			if def.VerifyStored {
				opts = append(opts, updater.WithReader(deps.reader()))
			}

			u := updater.New(store, writer, updater.Settings{
				AppPath:         def.AppPath,
				AccountTemplate: def.AccountTemplate,
				ServiceName:     def.ServiceName,
				Label:           def.LabelValue(),
				TeamID:          def.TeamID,
				AccessApps:      def.AccessApps,
				VerifyLogin:     def.VerifyLogin,
				VerifyStored:    def.VerifyStored,
				SSLMode:         def.VerifySSLMode,
			}, opts...)

			results, err := u.UpdateAll(cmd.Context(), requests)
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s -> %s\n", res.Connection, res.Account, res.PreviousUser, res.User)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&connection, "connection", "", "Connection name as shown in TablePlus")
	cmd.Flags().StringVar(&username, "username", "", "New database user name")
	cmd.Flags().StringVar(&password, "password", "", "New database password (prompted when omitted)")
	cmd.Flags().BoolVar(&create, "create", false, "Create the connection if it does not exist (not supported)")
	cmd.Flags().StringVar(&teamID, "team-id", "", "TablePlus signing team identifier (skips codesign)")
	cmd.Flags().BoolVar(&includeSystemTool, "include-system-tool", false, "Also let the security tool read the item (apple-tool: partition)")
	cmd.Flags().BoolVar(&verifyLogin, "verify-login", false, "Log in to the database with the new credentials before storing them")
	cmd.Flags().BoolVar(&verifyStored, "verify-stored", false, "Read the password back from the keychain after storing it (requires --include-system-tool)")
	cmd.Flags().StringVar(&from, "from", "", "YAML batch file listing connections to update")
	cmd.Flags().StringVar(&keychainPwFile, "keychain-password-file", "", "Read the login keychain password from a file (- for stdin)")

	_ = cmd.RegisterFlagCompletionFunc("connection", completeConnectionNames(cfg))
	_ = cmd.MarkFlagFilename("from", "yaml", "yml")

	return cmd
}

func buildRequests(cmd *cobra.Command, cfg *config.Config, deps *Deps, from string, single updater.Request) ([]updater.Request, error) {
	var requests []updater.Request
	if from != "" {
		batch, err := config.LoadBatch(from)
		if err != nil {
			return nil, err
		}
		for _, e := range batch.Connections {
			requests = append(requests, updater.Request{
				ConnectionName: e.Connection,
				Username:       e.Username,
				Password:       e.Password,
				Create:         e.Create,
			})
		}
	} else {
		if single.ConnectionName == "" {
			return nil, dserrors.UserError{
				Message:    "Connection name is required",
				Suggestion: "Use --connection <name>, or 'tpcreds list' to see the names",
			}
		}
		if single.Username == "" {
			return nil, dserrors.UserError{
				Message:    "User name is required",
				Suggestion: "Use --username <user>",
			}
		}
		requests = append(requests, single)
	}

	for i := range requests {
		if requests[i].Password != "" || cmd.Flags().Changed("password") {
			continue
		}
		if cfg.NonInteractive {
			return nil, dserrors.UserError{
				Message:    fmt.Sprintf("No password given for %s", requests[i].ConnectionName),
				Suggestion: "Pass --password, set password in the batch file, or run without --non-interactive",
			}
		}
		pw, err := deps.terminal().ReadSecret(cmd.Context(), fmt.Sprintf("New password for %s: ", requests[i].ConnectionName))
		if err != nil {
			return nil, err
		}
		requests[i].Password = pw
	}
	return requests, nil
}
