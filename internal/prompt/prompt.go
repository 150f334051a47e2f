// Package prompt supplies secondary credentials that are not passed on the
// command line, such as the login keychain password.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/secure"
)

// KeychainPrompt is shown when asking for the login keychain password.
const KeychainPrompt = "Please enter password for the default keychain: "

// CredentialProvider supplies the keychain unlock password.
type CredentialProvider interface {
	KeychainPassword(ctx context.Context) (string, error)
}

// TerminalProvider reads secrets from a terminal without echo.
type TerminalProvider struct {
	in  *os.File
	out io.Writer
	// readPassword is swapped in tests; defaults to term.ReadPassword.
	readPassword func(fd int) ([]byte, error)
}

// NewTerminalProvider reads from stdin and writes prompts to stderr.
func NewTerminalProvider() *TerminalProvider {
	return &TerminalProvider{
		in:           os.Stdin,
		out:          os.Stderr,
		readPassword: term.ReadPassword,
	}
}

// KeychainPassword prompts for the login keychain password.
func (p *TerminalProvider) KeychainPassword(ctx context.Context) (string, error) {
	return p.ReadSecret(ctx, KeychainPrompt)
}

// ReadSecret shows label and reads one masked line. Empty input is an error.
// When stdin is not a terminal the line is read as-is, which lets scripts
// pipe the value in.
func (p *TerminalProvider) ReadSecret(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprint(p.out, label)

	var (
		raw []byte
		err error
	)
	fd := int(p.in.Fd())
	if term.IsTerminal(fd) {
		raw, err = p.readPassword(fd)
		fmt.Fprintln(p.out)
	} else {
		raw, err = readLine(p.in)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	value := string(raw)
	if value == "" {
		return "", dserrors.UserError{
			Message:    "No value entered",
			Suggestion: "A value is required to continue",
		}
	}
	return value, nil
}

func readLine(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// StaticProvider returns a fixed password.
type StaticProvider string

// KeychainPassword returns the configured value.
func (s StaticProvider) KeychainPassword(context.Context) (string, error) {
	return string(s), nil
}

// NonInteractiveProvider refuses to prompt.
type NonInteractiveProvider struct{}

// KeychainPassword always fails.
func (NonInteractiveProvider) KeychainPassword(context.Context) (string, error) {
	return "", dserrors.UserError{
		Message:    "Keychain password required but prompting is disabled",
		Suggestion: "Pass --keychain-password-file, or run without --non-interactive",
	}
}

// CachingProvider asks its inner provider once and keeps the answer sealed
// in memory for later calls, so a batch update prompts a single time.
type CachingProvider struct {
	inner CredentialProvider

	mu     sync.Mutex
	cached *secure.Buffer
}

// NewCachingProvider wraps inner.
func NewCachingProvider(inner CredentialProvider) *CachingProvider {
	return &CachingProvider{inner: inner}
}

// KeychainPassword returns the cached value or asks the inner provider.
func (c *CachingProvider) KeychainPassword(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil {
		return c.cached.Reveal()
	}

	pw, err := c.inner.KeychainPassword(ctx)
	if err != nil {
		return "", err
	}
	c.cached = secure.NewBufferFromString(pw)
	return pw, nil
}

// Forget drops the cached value.
func (c *CachingProvider) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil {
		c.cached.Destroy()
		c.cached = nil
	}
}

// FileProvider reads the keychain password from a file, or from stdin when
// the path is "-". One trailing newline is stripped.
type FileProvider struct {
	Path  string
	Stdin io.Reader
}

// KeychainPassword reads and returns the file contents.
func (f FileProvider) KeychainPassword(context.Context) (string, error) {
	var (
		raw []byte
		err error
	)
	if f.Path == "-" {
		in := f.Stdin
		if in == nil {
			in = os.Stdin
		}
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(f.Path)
	}
	if err != nil {
		return "", dserrors.UserError{
			Message: "Failed to read keychain password",
			Details: err.Error(),
			Err:     err,
		}
	}

	pw := strings.TrimSuffix(strings.TrimSuffix(string(raw), "\n"), "\r")
	if pw == "" {
		return "", dserrors.UserError{
			Message:    "Keychain password file is empty",
			Suggestion: "Write the login keychain password to " + f.Path,
		}
	}
	return pw, nil
}
