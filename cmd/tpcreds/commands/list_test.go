package commands

import (
	"errors"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/tpcreds/tests/testutil"
)

func TestListCommand_Table(t *testing.T) {
	e := newEnv(t, nil)
	e.mock.AddErrorResponse(testutil.FindPasswordCmd+" -a def456_database", "The specified item could not be found in the keychain.", testutil.ItemNotFoundExitCode)

	out, _, err := run(t, NewListCommand(e.cfg, e.deps), "")
	require.NoError(t, err)

	testutil.AssertLinesContain(t, out, []string{"NAME", "Prod", "Staging"})
	assert.Regexp(t, `Prod\s+abc123\s+old\s+stored`, out)
	assert.Regexp(t, `Staging\s+def456\s+stage\s+missing`, out)
}

func TestListCommand_ReadsAttributesOnly(t *testing.T) {
	e := newEnv(t, nil)
	e.reader.GetErr = errors.New("secret must not be read while listing")

	out, _, err := run(t, NewListCommand(e.cfg, e.deps), "")
	require.NoError(t, err)
	assert.Regexp(t, `Prod\s+abc123\s+old\s+stored`, out)

	calls := e.mock.GetCalls(testutil.FindPasswordCmd)
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.False(t, c.HasArg("-w"), "find-generic-password must not request the secret")
		assert.False(t, c.HasArg("-g"))
		assert.Contains(t, c.Args, "com.tableplus.TablePlus")
	}
	assert.Zero(t, e.reader.Reads)
}

func TestListCommand_LookupFailureIsUnknown(t *testing.T) {
	e := newEnv(t, nil)
	e.mock.AddErrorResponse(testutil.FindPasswordCmd, "SecKeychainSearchCopyNext: interaction not allowed", 36)

	out, _, err := run(t, NewListCommand(e.cfg, e.deps), "")
	require.NoError(t, err)
	assert.Regexp(t, `Prod\s+abc123\s+old\s+unknown`, out)
}

func TestListCommand_JSON(t *testing.T) {
	e := newEnv(t, nil)

	out, _, err := run(t, NewListCommand(e.cfg, e.deps), "", "--json", "--no-keychain")
	require.NoError(t, err)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "Prod", entries[0]["name"])
	assert.Equal(t, "abc123_database", entries[0]["account"])
	assert.Equal(t, "MySQL", entries[1]["driver"])
	assert.Equal(t, "-", entries[1]["keychain"])
	assert.Equal(t, 0, e.mock.CallCount())
}

func TestListCommand_MissingConnectionsFile(t *testing.T) {
	e := newEnv(t, nil)
	require.NoError(t, os.Remove(e.plist))

	_, _, err := run(t, NewListCommand(e.cfg, e.deps), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connections file not found")
}

func TestListCommand_DefaultPathsUnderHome(t *testing.T) {
	home := testutil.FakeHome(t)

	e := newEnv(t, nil)
	data, err := os.ReadFile(e.plist)
	require.NoError(t, err)
	testutil.WriteHomeFile(t, home, "Library/Application Support/com.tinyapp.TablePlus/Data/Connections.plist", string(data))
	testutil.WriteHomeFile(t, home, ".config/tpcreds/config.yaml", "version: 0\n")

	e.cfg.Path = ""
	e.cfg.Required = false

	out, _, err := run(t, NewListCommand(e.cfg, e.deps), "", "--no-keychain")
	require.NoError(t, err)
	testutil.AssertLinesContain(t, out, []string{"Prod", "Staging"})
}
