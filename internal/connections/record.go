// Package connections reads and rewrites the TablePlus connection list
// (Connections.plist).
package connections

import "fmt"

// Keys TablePlus uses in each connection dictionary.
const (
	KeyName     = "ConnectionName"
	KeyID       = "ID"
	KeyUser     = "DatabaseUser"
	KeyDriver   = "Driver"
	KeyHost     = "DatabaseHost"
	KeyPort     = "DatabasePort"
	KeyDatabase = "DatabaseName"
)

// Record is one connection. Every key is kept as decoded so fields this
// tool does not know about are written back unchanged.
type Record map[string]interface{}

// Name returns the display name used for lookups.
func (r Record) Name() string { return r.str(KeyName) }

// ID returns the stable identifier that namespaces the keychain item.
func (r Record) ID() string { return r.str(KeyID) }

// User returns the database user name.
func (r Record) User() string { return r.str(KeyUser) }

// SetUser replaces the database user name.
func (r Record) SetUser(user string) { r[KeyUser] = user }

// Driver returns the TablePlus driver name, e.g. "PostgreSQL".
func (r Record) Driver() string { return r.str(KeyDriver) }

// Host returns the database host.
func (r Record) Host() string { return r.str(KeyHost) }

// Port returns the database port as text.
func (r Record) Port() string { return r.str(KeyPort) }

// Database returns the database name.
func (r Record) Database() string { return r.str(KeyDatabase) }

// Field returns any field rendered as text, and whether it exists.
func (r Record) Field(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func (r Record) str(key string) string {
	s, _ := r.Field(key)
	return s
}

// List is the ordered connection list.
type List []Record

// Find returns the index of the first record named name (exact,
// case-sensitive match).
func (l List) Find(name string) (int, bool) {
	for i, r := range l {
		if r.Name() == name {
			return i, true
		}
	}
	return -1, false
}

// Names returns the connection names in file order.
func (l List) Names() []string {
	names := make([]string, len(l))
	for i, r := range l {
		names[i] = r.Name()
	}
	return names
}
