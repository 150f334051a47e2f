package connections

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	dserrors "github.com/systmms/tpcreds/internal/errors"
)

// Store loads and atomically replaces a connections file.
type Store struct {
	Path string

	// format is the plist encoding detected by Load; Save reuses it.
	format int
}

// NewStore returns a store for path, expanding a leading "~".
func NewStore(path string) (*Store, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return &Store{Path: expanded, format: plist.XMLFormat}, nil
}

// ExpandPath replaces a leading "~" or "~/" with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Load reads the whole connection list.
func (s *Store) Load() (List, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				Field:      "connections_path",
				Value:      s.Path,
				Message:    "connections file not found",
				Suggestion: "Start TablePlus once or point connections_path at Connections.plist",
			}
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read connections file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	list, format, err := Decode(data)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to parse connections file",
			Details:    err.Error(),
			Suggestion: "Check that " + s.Path + " is a TablePlus Connections.plist",
			Err:        err,
		}
	}
	s.format = format
	return list, nil
}

// Save replaces the connections file with list.
//
// TablePlus ignores in-place edits to an open Connections.plist and writes
// its own copy back on exit, but it does pick up a file replaced at the path
// level. The list is therefore written inside a fresh scratch directory next
// to the target and renamed over it. The scratch directory is always removed.
func (s *Store) Save(list List) error {
	data, err := Encode(list, s.format)
	if err != nil {
		return err
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.Path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(s.Path)
	scratch, err := os.MkdirTemp(dir, ".tpcreds-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	tmp := filepath.Join(scratch, filepath.Base(s.Path))
	if err := writeFile(tmp, data, mode); err != nil {
		return err
	}

	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}

func writeFile(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}

// Decode parses a plist array of dictionaries and reports its encoding.
func Decode(data []byte) (List, int, error) {
	var raw []map[string]interface{}
	format, err := plist.Unmarshal(data, &raw)
	if err != nil {
		return nil, 0, err
	}
	list := make(List, len(raw))
	for i, m := range raw {
		list[i] = Record(m)
	}
	return list, format, nil
}

// Encode serializes list in the given plist format. XML output is tab
// indented like the files TablePlus writes.
func Encode(list List, format int) ([]byte, error) {
	raw := make([]map[string]interface{}, len(list))
	for i, r := range list {
		raw[i] = map[string]interface{}(r)
	}
	if format == plist.XMLFormat {
		return plist.MarshalIndent(raw, format, "\t")
	}
	return plist.Marshal(raw, format)
}
