package testutil

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertNoSecretLeak verifies that none of secrets appears in output, which
// is typically an error message or captured stderr.
//
//	AssertNoSecretLeak(t, err.Error(), []string{"db-password", "login-password"})
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, output, secret, "Secret value %q leaked into output", secret)
	}
}

// Snapshot captures a file's bytes and modification time so a test can
// later prove the file was left alone.
type Snapshot struct {
	path string
	data []byte
	info os.FileInfo
}

// TakeSnapshot records path's current state.
func TakeSnapshot(t *testing.T, path string) Snapshot {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read %s", path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	return Snapshot{path: path, data: data, info: info}
}

// AssertUnchanged verifies the file still has the same content and was not
// replaced.
func (s Snapshot) AssertUnchanged(t *testing.T) {
	t.Helper()

	data, err := os.ReadFile(s.path)
	require.NoError(t, err, "Failed to read %s", s.path)
	assert.Equal(t, string(s.data), string(data), "%s content changed", s.path)

	info, err := os.Stat(s.path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(s.info, info), "%s was replaced", s.path)
}

// AssertLinesContain verifies that each expected string is found, in order,
// on successive lines of output.
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	next := 0
	for _, expected := range expectedLines {
		found := false
		for next < len(lines) {
			line := lines[next]
			next++
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected a line containing %q in order, output:\n%s", expected, output)
			return
		}
	}
}
