package commands

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/spf13/cobra"

	"github.com/systmms/tpcreds/internal/config"
	"github.com/systmms/tpcreds/internal/connections"
	"github.com/systmms/tpcreds/tests/fakes"
	"github.com/systmms/tpcreds/tests/testutil"
)

const testApp = "/Applications/TablePlus.app"

// fakeTerminal answers prompts from a queue and records the labels shown.
type fakeTerminal struct {
	answers  []string
	labels   []string
	keychain string
	asked    int
}

func (f *fakeTerminal) ReadSecret(_ context.Context, label string) (string, error) {
	f.labels = append(f.labels, label)
	if len(f.answers) == 0 {
		return "", fmt.Errorf("unexpected prompt %q", label)
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func (f *fakeTerminal) KeychainPassword(context.Context) (string, error) {
	f.asked++
	return f.keychain, nil
}

type env struct {
	builder  *testutil.TestConfigBuilder
	plist    string
	cfg      *config.Config
	deps     *Deps
	mock     *testutil.MockCommandExecutor
	terminal *fakeTerminal
	reader   *fakes.FakeKeychainReader
	log      *testutil.TestLogger
}

// newEnv writes settings and a two-entry connection list. edit, when not
// nil, adjusts the settings before they are written.
func newEnv(t *testing.T, edit func(*config.Definition)) *env {
	t.Helper()

	builder := testutil.NewTestConfig(t).
		WithRecord(connections.Record{
			connections.KeyName:   "Prod",
			connections.KeyID:     "abc123",
			connections.KeyUser:   "old",
			connections.KeyDriver: "PostgreSQL",
		}).
		WithRecord(connections.Record{
			connections.KeyName:   "Staging",
			connections.KeyID:     "def456",
			connections.KeyUser:   "stage",
			connections.KeyDriver: "MySQL",
		})
	if edit != nil {
		builder.WithDefinition(edit)
	}

	mock := testutil.NewMockCommandExecutor()
	mock.AddResponse(testutil.CodesignCmd, testutil.CodesignMockResponses{}.Signed(testApp, "3X57WP8E8V"))

	log := testutil.NewTestLogger(t, false)
	e := &env{
		builder: builder,
		plist:   builder.ConnectionsPath(),
		cfg: &config.Config{
			Path:     builder.Write(),
			Required: true,
			Logger:   log.Logger(),
		},
		mock:     mock,
		terminal: &fakeTerminal{keychain: "login-pw"},
		reader:   fakes.NewFakeKeychainReader(),
		log:      log,
	}
	e.deps = &Deps{
		Executor:  mock,
		Reader:    e.reader,
		Terminal:  e.terminal,
		Supported: func() bool { return true },
	}
	return e
}

// run executes cmd with args and returns stdout and stderr.
func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}
