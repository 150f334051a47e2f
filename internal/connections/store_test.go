package connections

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"
)

const fixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<array>
	<dict>
		<key>ConnectionName</key>
		<string>Staging</string>
		<key>DatabaseHost</key>
		<string>staging.db.internal</string>
		<key>DatabasePort</key>
		<string>5432</string>
		<key>DatabaseUser</key>
		<string>stage</string>
		<key>Driver</key>
		<string>PostgreSQL</string>
		<key>ID</key>
		<string>def456</string>
		<key>LastOpened</key>
		<date>2024-04-02T10:15:42Z</date>
		<key>StatusColor</key>
		<integer>3</integer>
		<key>isUseSSL</key>
		<true/>
		<key>Tags</key>
		<array>
			<string>team-a</string>
		</array>
	</dict>
	<dict>
		<key>ConnectionName</key>
		<string>Prod</string>
		<key>DatabaseUser</key>
		<string>old</string>
		<key>ID</key>
		<string>abc123</string>
		<key>SafeModeLevel</key>
		<real>1.5</real>
		<key>Cert</key>
		<data>AAEC</data>
	</dict>
</array>
</plist>
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Connections.plist")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStoreLoad(t *testing.T) {
	t.Parallel()

	s, err := NewStore(writeFixture(t, fixture))
	require.NoError(t, err)

	list, err := s.Load()
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, []string{"Staging", "Prod"}, list.Names())
	assert.Equal(t, "def456", list[0].ID())
	assert.Equal(t, "stage", list[0].User())
	assert.Equal(t, "PostgreSQL", list[0].Driver())
	assert.Equal(t, "staging.db.internal", list[0].Host())
	assert.Equal(t, "5432", list[0].Port())
	assert.Equal(t, "", list[0].Database())

	color, ok := list[0].Field("StatusColor")
	assert.True(t, ok)
	assert.Equal(t, "3", color)
	_, ok = list[1].Field("Missing")
	assert.False(t, ok)
}

func TestStoreLoadErrors(t *testing.T) {
	t.Parallel()

	s, err := NewStore(filepath.Join(t.TempDir(), "missing.plist"))
	require.NoError(t, err)
	_, err = s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connections file not found")

	s, err = NewStore(writeFixture(t, "not a plist at all {"))
	require.NoError(t, err)
	_, err = s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to parse connections file")
}

func TestListFind(t *testing.T) {
	t.Parallel()

	list := List{
		{KeyName: "prod", KeyID: "1"},
		{KeyName: "Prod", KeyID: "2"},
		{KeyName: "Prod", KeyID: "3"},
	}

	i, ok := list.Find("Prod")
	require.True(t, ok)
	assert.Equal(t, 1, i, "first exact match wins")

	_, ok = list.Find("PROD")
	assert.False(t, ok, "lookup is case-sensitive")

	_, ok = List{}.Find("Prod")
	assert.False(t, ok)
}

func TestRoundTripPreservesContentAndOrder(t *testing.T) {
	t.Parallel()

	list, format, err := Decode([]byte(fixture))
	require.NoError(t, err)
	assert.Equal(t, plist.XMLFormat, format)

	data, err := Encode(list, format)
	require.NoError(t, err)

	again, format2, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, format, format2)
	assert.Equal(t, list, again)

	assert.Equal(t, time.Date(2024, 4, 2, 10, 15, 42, 0, time.UTC), again[0]["LastOpened"].(time.Time).UTC())
	assert.Equal(t, []byte{0, 1, 2}, again[1]["Cert"])
	assert.Equal(t, 1.5, again[1]["SafeModeLevel"])
	assert.Equal(t, true, again[0]["isUseSSL"])
}

func TestStoreSaveReplacesFile(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, fixture)
	s, err := NewStore(path)
	require.NoError(t, err)

	list, err := s.Load()
	require.NoError(t, err)

	i, ok := list.Find("Prod")
	require.True(t, ok)
	list[i].SetUser("new")

	before, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Save(list))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, os.SameFile(before, after), "file must be replaced, not edited in place")
	assert.Equal(t, os.FileMode(0o600), after.Mode().Perm(), "mode preserved")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "scratch directory removed")

	reloaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", reloaded[1].User())
	assert.Equal(t, list[0], reloaded[0])
}

func TestStoreSaveFailureLeavesNoScratch(t *testing.T) {
	t.Parallel()

	path := writeFixture(t, fixture)
	dir := filepath.Dir(path)

	// A non-empty directory at the target makes the final rename fail.
	blocked := filepath.Join(dir, "Blocked.plist")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "keep"), []byte("keep"), 0o600))

	s, err := NewStore(path)
	require.NoError(t, err)
	list, err := s.Load()
	require.NoError(t, err)
	list[0].SetUser("new")

	s.Path = blocked
	err = s.Save(list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to replace")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
		assert.False(t, strings.HasPrefix(e.Name(), ".tpcreds-"), "scratch directory %s left behind", e.Name())
	}
	assert.ElementsMatch(t, []string{"Connections.plist", "Blocked.plist"}, names)

	kept, err := os.ReadFile(filepath.Join(blocked, "keep"))
	require.NoError(t, err)
	assert.Equal(t, "keep", string(kept))

	original, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, fixture, string(original))
}

func TestStoreSaveKeepsBinaryFormat(t *testing.T) {
	t.Parallel()

	list, _, err := Decode([]byte(fixture))
	require.NoError(t, err)
	bin, err := Encode(list, plist.BinaryFormat)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "Connections.plist")
	require.NoError(t, os.WriteFile(path, bin, 0o644))

	s, err := NewStore(path)
	require.NoError(t, err)
	loaded, err := s.Load()
	require.NoError(t, err)
	require.NoError(t, s.Save(loaded))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bplist00", string(data[:8]))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		in   string
		want string
	}{
		{in: "~/Library/Connections.plist", want: filepath.Join(home, "Library/Connections.plist")},
		{in: "~", want: home},
		{in: "/abs/path.plist", want: "/abs/path.plist"},
		{in: "~other/x", want: "~other/x"},
	}

	for _, tt := range tests {
		got, err := ExpandPath(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
