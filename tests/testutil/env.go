package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// FakeHome points $HOME at a fresh temporary directory for the duration of
// the test, so "~" paths resolve inside it. Tests using it cannot run in
// parallel.
func FakeHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// WriteHomeFile writes content to rel under home, creating parent
// directories.
func WriteHomeFile(t *testing.T, home, rel, content string) string {
	t.Helper()

	path := filepath.Join(home, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}
