// Package codesign reads the code-signing team identifier of an installed
// application bundle.
package codesign

import (
	"context"
	"errors"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"sync"

	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/logging"
	"github.com/systmms/tpcreds/pkg/exec"
)

// DefaultTool is the signature inspection utility shipped with macOS.
const DefaultTool = "codesign"

// TeamIdentifierKey is the codesign output key holding the team id.
const TeamIdentifierKey = "TeamIdentifier"

// unsetTeamID is what codesign prints for ad-hoc signed bundles.
const unsetTeamID = "not set"

// Resolver derives team identifiers by running codesign.
type Resolver struct {
	executor exec.CommandExecutor
	stderr   io.Writer
	tool     string
	logger   *logging.Logger

	mu    sync.Mutex
	cache map[string]string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStderr sets where codesign diagnostics are proxied on failure.
func WithStderr(w io.Writer) Option {
	return func(r *Resolver) { r.stderr = w }
}

// WithTool overrides the codesign binary.
func WithTool(tool string) Option {
	return func(r *Resolver) { r.tool = tool }
}

// WithLogger enables debug output.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. A nil executor uses the real one.
func NewResolver(executor exec.CommandExecutor, opts ...Option) *Resolver {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	r := &Resolver{
		executor: executor,
		stderr:   os.Stderr,
		tool:     DefaultTool,
		cache:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TeamID returns the TeamIdentifier codesign reports for appPath.
func (r *Resolver) TeamID(ctx context.Context, appPath string) (string, error) {
	r.mu.Lock()
	if id, ok := r.cache[appPath]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	args := []string{"-dv", "--verbose=4", appPath}
	if r.logger != nil {
		r.logger.Debug("Running %s", exec.CommandLine(r.tool, args...))
	}

	_, stderr, err := r.executor.Execute(ctx, r.tool, args...)
	if err != nil {
		if errors.Is(err, osexec.ErrNotFound) {
			return "", dserrors.WrapCommandNotFound(r.tool, err)
		}
		_, _ = r.stderr.Write(stderr)
		return "", dserrors.CommandError{
			Command:    exec.CommandLine(r.tool, args...),
			ExitCode:   exec.ExitCode(err),
			Suggestion: "Check that the application is installed at " + appPath,
		}
	}

	// codesign reports the signature on stderr.
	fields := ParseSignature(string(stderr))
	id, ok := fields[TeamIdentifierKey]
	if !ok || id == "" || id == unsetTeamID {
		return "", dserrors.LookupError{Key: TeamIdentifierKey, Source: r.tool}
	}

	r.mu.Lock()
	r.cache[appPath] = id
	r.mu.Unlock()
	return id, nil
}

// ParseSignature turns codesign's verbose output into a key/value map.
// Lines that do not contain exactly one '=' are skipped.
func ParseSignature(output string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		tokens := strings.Split(line, "=")
		if len(tokens) != 2 {
			continue
		}
		fields[tokens[0]] = tokens[1]
	}
	return fields
}
