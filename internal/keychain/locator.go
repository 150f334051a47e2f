package keychain

import (
	"context"
	"errors"
	osexec "os/exec"

	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/logging"
	"github.com/systmms/tpcreds/pkg/exec"
)

// ExitItemNotFound is the status find-generic-password exits with when no
// item matches (errSecItemNotFound).
const ExitItemNotFound = 44

// Locator checks whether items exist by reading their attributes only. The
// secret is never requested, so no access prompt is raised for items whose
// partition list does not include the security tool.
type Locator struct {
	executor exec.CommandExecutor
	tool     string
	logger   *logging.Logger
}

// NewLocator creates a locator. A nil executor uses the real one.
func NewLocator(executor exec.CommandExecutor, logger *logging.Logger) *Locator {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	return &Locator{executor: executor, tool: DefaultTool, logger: logger}
}

// Exists reports whether an item is stored for (service, account).
func (l *Locator) Exists(ctx context.Context, service, account string) (bool, error) {
	args := []string{"find-generic-password", "-a", account, "-s", service}
	if l.logger != nil {
		l.logger.Debug("Running %s", exec.CommandLine(l.tool, args...))
	}

	_, _, err := l.executor.Execute(ctx, l.tool, args...)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, osexec.ErrNotFound):
		return false, dserrors.WrapCommandNotFound(l.tool, err)
	case exec.ExitCode(err) == ExitItemNotFound:
		return false, nil
	default:
		return false, dserrors.CommandError{
			Command:  l.tool + " find-generic-password",
			ExitCode: exec.ExitCode(err),
		}
	}
}
