package commands

import (
	"context"
	"io"

	"github.com/systmms/tpcreds/internal/codesign"
	"github.com/systmms/tpcreds/internal/config"
	"github.com/systmms/tpcreds/internal/connections"
	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/keychain"
	"github.com/systmms/tpcreds/internal/metrics"
	"github.com/systmms/tpcreds/internal/prompt"
	"github.com/systmms/tpcreds/internal/updater"
	"github.com/systmms/tpcreds/internal/verify"
	"github.com/systmms/tpcreds/pkg/exec"
)

// Terminal reads secrets interactively.
type Terminal interface {
	prompt.CredentialProvider
	ReadSecret(ctx context.Context, label string) (string, error)
}

// Deps holds the collaborators commands talk to. Zero fields fall back to
// the real implementations.
type Deps struct {
	Executor  exec.CommandExecutor
	Reader    keychain.Reader
	Terminal  Terminal
	Checker   updater.LoginChecker
	Metrics   *metrics.Metrics
	Supported func() bool
}

func (d *Deps) executor() exec.CommandExecutor {
	if d.Executor == nil {
		d.Executor = exec.DefaultExecutor()
	}
	return d.Metrics.InstrumentExecutor(d.Executor)
}

func (d *Deps) reader() keychain.Reader {
	if d.Reader == nil {
		d.Reader = keychain.NewKeyringReader()
	}
	return d.Reader
}

func (d *Deps) terminal() Terminal {
	if d.Terminal == nil {
		d.Terminal = prompt.NewTerminalProvider()
	}
	return d.Terminal
}

func (d *Deps) checkPlatform() error {
	supported := d.Supported
	if supported == nil {
		supported = keychain.Supported
	}
	if !supported() {
		return dserrors.NotSupportedError{
			Feature: "Updating TablePlus credentials on this platform",
			Details: keychain.ErrUnsupportedPlatform.Error(),
		}
	}
	return nil
}

func (d *Deps) checker(def *config.Definition) updater.LoginChecker {
	if d.Checker == nil {
		d.Checker = verify.NewChecker(def.VerifyTimeoutDuration())
	}
	return d.Checker
}

func newResolver(cfg *config.Config, executor exec.CommandExecutor, stderr io.Writer) *codesign.Resolver {
	opts := []codesign.Option{
		codesign.WithStderr(stderr),
		codesign.WithLogger(cfg.Logger),
	}
	if tool := cfg.Definition.Tools.Codesign; tool != "" {
		opts = append(opts, codesign.WithTool(tool))
	}
	return codesign.NewResolver(executor, opts...)
}

func newConnectionStore(cfg *config.Config) (*connections.Store, error) {
	return connections.NewStore(cfg.Definition.ConnectionsPath)
}
