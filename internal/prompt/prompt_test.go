package prompt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	value string
	err   error
}

func (c *countingProvider) KeychainPassword(context.Context) (string, error) {
	c.calls++
	return c.value, c.err
}

func pipeWith(t *testing.T, content string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestTerminalProviderPipedInput(t *testing.T) {
	var out bytes.Buffer
	p := &TerminalProvider{
		in:  pipeWith(t, "login-pw\n"),
		out: &out,
		readPassword: func(int) ([]byte, error) {
			t.Fatal("readPassword must not be used for non-terminal input")
			return nil, nil
		},
	}

	got, err := p.KeychainPassword(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "login-pw", got)
	assert.Equal(t, KeychainPrompt, out.String())
}

func TestTerminalProviderEmptyInput(t *testing.T) {
	p := &TerminalProvider{in: pipeWith(t, "\n"), out: &bytes.Buffer{}}

	_, err := p.ReadSecret(context.Background(), "Password: ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No value entered")
}

func TestTerminalProviderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	p := &TerminalProvider{in: pipeWith(t, "x\n"), out: &out}

	_, err := p.ReadSecret(ctx, "Password: ")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestStaticProvider(t *testing.T) {
	got, err := StaticProvider("pw").KeychainPassword(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pw", got)
}

func TestNonInteractiveProvider(t *testing.T) {
	_, err := NonInteractiveProvider{}.KeychainPassword(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--keychain-password-file")
}

func TestCachingProvider(t *testing.T) {
	inner := &countingProvider{value: "cached-pw"}
	c := NewCachingProvider(inner)

	for i := 0; i < 3; i++ {
		got, err := c.KeychainPassword(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cached-pw", got)
	}
	assert.Equal(t, 1, inner.calls)

	c.Forget()
	_, err := c.KeychainPassword(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("no tty")}
	c := NewCachingProvider(inner)

	_, err := c.KeychainPassword(context.Background())
	require.Error(t, err)
	_, err = c.KeychainPassword(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    string
		wantErr string
	}{
		{name: "trailing_newline", content: "pw\n", want: "pw"},
		{name: "crlf", content: "pw\r\n", want: "pw"},
		{name: "no_newline", content: "pw", want: "pw"},
		{name: "empty", content: "", wantErr: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			got, err := FileProvider{Path: path}.KeychainPassword(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("stdin", func(t *testing.T) {
		got, err := FileProvider{Path: "-", Stdin: strings.NewReader("from-stdin\n")}.KeychainPassword(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from-stdin", got)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := FileProvider{Path: filepath.Join(dir, "nope")}.KeychainPassword(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Failed to read keychain password")
	})
}

func TestCachingProviderReturnsStableCopies(t *testing.T) {
	c := NewCachingProvider(StaticProvider("login-keychain-pw"))
	defer c.Forget()

	first, err := c.KeychainPassword(context.Background())
	require.NoError(t, err)
	second, err := c.KeychainPassword(context.Background())
	require.NoError(t, err)
	third, err := c.KeychainPassword(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "login-keychain-pw", second)
	assert.Equal(t, second, third)
	assert.Equal(t, first, third)
}
