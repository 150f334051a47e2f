// Package keychain writes generic-password items to the macOS login
// keychain with the security tool and grants applications access to them
// through the item's partition list.
package keychain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"

	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/logging"
	"github.com/systmms/tpcreds/internal/prompt"
	"github.com/systmms/tpcreds/pkg/exec"
)

// DefaultTool is the keychain command line utility shipped with macOS.
const DefaultTool = "security"

// ExitItemExists is the status add-generic-password exits with when the
// item is already present (ENOTSUP on darwin).
const ExitItemExists = 45

// Partition list tokens.
const (
	SystemToolPartition = "apple-tool:"
	teamIDPartitionFmt  = "teamid:%s"
)

// TeamIDResolver derives the signing team of an application bundle.
type TeamIDResolver interface {
	TeamID(ctx context.Context, appPath string) (string, error)
}

// Item describes one generic-password keychain entry.
type Item struct {
	Account  string
	Service  string
	Password string
	Label    string

	// AppPath is granted access on creation and used to resolve the team
	// identifier when TeamID is empty.
	AppPath string
	// AccessApps are granted access on creation in addition to AppPath.
	AccessApps []string

	TeamID           string
	KeychainPassword string
}

// Writer creates or updates keychain items and applies their partition list.
type Writer struct {
	executor          exec.CommandExecutor
	resolver          TeamIDResolver
	credentials       prompt.CredentialProvider
	stderr            io.Writer
	tool              string
	includeSystemTool bool
	logger            *logging.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithStderr sets where security diagnostics are proxied on failure.
func WithStderr(w io.Writer) WriterOption {
	return func(kw *Writer) { kw.stderr = w }
}

// WithTool overrides the security binary.
func WithTool(tool string) WriterOption {
	return func(kw *Writer) { kw.tool = tool }
}

// WithSystemToolPartition also grants the security command line tool
// (apple-tool:) read access to every item written.
func WithSystemToolPartition(enabled bool) WriterOption {
	return func(kw *Writer) { kw.includeSystemTool = enabled }
}

// WithLogger enables debug output.
func WithLogger(l *logging.Logger) WriterOption {
	return func(kw *Writer) { kw.logger = l }
}

// NewWriter creates a writer. A nil executor uses the real one.
func NewWriter(executor exec.CommandExecutor, resolver TeamIDResolver, credentials prompt.CredentialProvider, opts ...WriterOption) *Writer {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	kw := &Writer{
		executor:    executor,
		resolver:    resolver,
		credentials: credentials,
		stderr:      os.Stderr,
		tool:        DefaultTool,
	}
	for _, opt := range opts {
		opt(kw)
	}
	return kw
}

// Store writes item's password, creating the entry if needed, then resets
// its partition list. Any failing step aborts the remaining ones.
func (kw *Writer) Store(ctx context.Context, item Item) error {
	if item.Account == "" || item.Service == "" {
		return dserrors.ConfigError{
			Message:    "keychain account and service are required",
			Suggestion: "Check account_template and service_name",
		}
	}

	if err := kw.addOrUpdate(ctx, item); err != nil {
		return err
	}

	teamID := item.TeamID
	if teamID == "" {
		if kw.resolver == nil || item.AppPath == "" {
			return dserrors.ConfigError{
				Field:      "team_id",
				Message:    "team identifier unknown and no application path to derive it from",
				Suggestion: "Set team_id or app_path",
			}
		}
		var err error
		teamID, err = kw.resolver.TeamID(ctx, item.AppPath)
		if err != nil {
			return err
		}
	}

	keychainPassword := item.KeychainPassword
	if keychainPassword == "" {
		if kw.credentials == nil {
			return dserrors.UserError{Message: "Keychain password required but no way to obtain it"}
		}
		var err error
		keychainPassword, err = kw.credentials.KeychainPassword(ctx)
		if err != nil {
			return err
		}
	}

	args := []string{
		"set-generic-password-partition-list",
		"-a", item.Account,
		"-s", item.Service,
		"-S", PartitionList(teamID, kw.includeSystemTool),
		"-k", keychainPassword,
	}
	if err := kw.run(ctx, args); err != nil {
		return kw.failure(err, args[0], "Check the login keychain password")
	}
	return nil
}

// addOrUpdate runs add-generic-password and falls back to an in-place update
// when the item already exists.
func (kw *Writer) addOrUpdate(ctx context.Context, item Item) error {
	base := []string{
		"add-generic-password",
		"-a", item.Account,
		"-s", item.Service,
		"-w", item.Password,
	}
	if item.Label != "" {
		base = append(base, "-l", item.Label)
	}

	create := append([]string(nil), base...)
	for _, app := range accessApps(item) {
		create = append(create, "-T", app)
	}

	err := kw.run(ctx, create)
	if err == nil {
		return nil
	}
	if exec.ExitCode(err) != ExitItemExists {
		return kw.failure(err, base[0], "")
	}

	if kw.logger != nil {
		kw.logger.Debug("Keychain item %s/%s exists, updating in place", item.Service, item.Account)
	}

	update := append(append([]string(nil), base...), "-U")
	if err := kw.run(ctx, update); err != nil {
		return kw.failure(err, base[0], "")
	}
	return nil
}

func (kw *Writer) run(ctx context.Context, args []string) error {
	if kw.logger != nil {
		kw.logger.Debug("Running %s", exec.CommandLine(kw.tool, logging.RedactArgs(args, "-w", "-k")...))
	}
	_, stderr, err := kw.executor.Execute(ctx, kw.tool, args...)
	if err != nil && !errors.Is(err, osexec.ErrNotFound) {
		// stderr is proxied by failure once the error is known to be final.
		return &processError{err: err, stderr: stderr}
	}
	return err
}

// processError carries stderr alongside the exit error until the caller
// decides whether the failure is fatal.
type processError struct {
	err    error
	stderr []byte
}

func (e *processError) Error() string { return e.err.Error() }
func (e *processError) Unwrap() error { return e.err }

func (kw *Writer) failure(err error, subcommand, suggestion string) error {
	if errors.Is(err, osexec.ErrNotFound) {
		return dserrors.WrapCommandNotFound(kw.tool, err)
	}
	var pe *processError
	if errors.As(err, &pe) {
		_, _ = kw.stderr.Write(pe.stderr)
	}
	return dserrors.CommandError{
		Command:    kw.tool + " " + subcommand,
		ExitCode:   exec.ExitCode(err),
		Suggestion: suggestion,
	}
}

func accessApps(item Item) []string {
	var apps []string
	if item.AppPath != "" {
		apps = append(apps, item.AppPath)
	}
	for _, app := range item.AccessApps {
		if app != "" && app != item.AppPath {
			apps = append(apps, app)
		}
	}
	return apps
}

// PartitionList builds the comma separated -S argument.
func PartitionList(teamID string, includeSystemTool bool) string {
	parts := make([]string, 0, 2)
	if includeSystemTool {
		parts = append(parts, SystemToolPartition)
	}
	parts = append(parts, fmt.Sprintf(teamIDPartitionFmt, teamID))
	return strings.Join(parts, ",")
}
