// Package testutil provides test utilities and helpers for tpcreds tests.
//
// This package contains shared test infrastructure including a settings and
// connection-list builder, a logger capture helper and a mock command
// executor for codesign and security.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"github.com/systmms/tpcreds/internal/config"
	"github.com/systmms/tpcreds/internal/connections"
)

// TestConfigBuilder writes a settings file and a Connections.plist into a
// temporary directory.
//
// Example usage:
//
//	builder := NewTestConfig(t).
//	    WithConnection("Prod", "abc123", "old").
//	    WithTeamID("3X57WP8E8V")
//	cfg := builder.Build()
type TestConfigBuilder struct {
	definition  *config.Definition
	connections connections.List
	format      int
	tempDir     string
	t           *testing.T
}

// NewTestConfig creates a builder with an empty connection list. The
// settings point connections_path into the builder's temporary directory.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	tempDir := t.TempDir()
	return &TestConfigBuilder{
		definition: &config.Definition{
			Version:         0,
			AppPath:         "/Applications/TablePlus.app",
			ConnectionsPath: filepath.Join(tempDir, "Connections.plist"),
		},
		format:  plist.XMLFormat,
		tempDir: tempDir,
		t:       t,
	}
}

// WithConnection appends a connection record.
func (b *TestConfigBuilder) WithConnection(name, id, user string) *TestConfigBuilder {
	return b.WithRecord(connections.Record{
		connections.KeyName: name,
		connections.KeyID:   id,
		connections.KeyUser: user,
	})
}

// WithRecord appends an arbitrary record.
func (b *TestConfigBuilder) WithRecord(r connections.Record) *TestConfigBuilder {
	b.connections = append(b.connections, r)
	return b
}

// WithBinaryPlist writes Connections.plist in binary format.
func (b *TestConfigBuilder) WithBinaryPlist() *TestConfigBuilder {
	b.format = plist.BinaryFormat
	return b
}

// WithTeamID pins the team identifier so codesign is not consulted.
func (b *TestConfigBuilder) WithTeamID(id string) *TestConfigBuilder {
	b.definition.TeamID = id
	return b
}

// WithDefinition lets a test edit the settings directly.
func (b *TestConfigBuilder) WithDefinition(fn func(*config.Definition)) *TestConfigBuilder {
	fn(b.definition)
	return b
}

// Dir returns the temporary directory holding the generated files.
func (b *TestConfigBuilder) Dir() string {
	return b.tempDir
}

// ConnectionsPath returns where Connections.plist is written.
func (b *TestConfigBuilder) ConnectionsPath() string {
	return b.definition.ConnectionsPath
}

// Write writes both files and returns the settings path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	settingsPath := filepath.Join(b.tempDir, "config.yaml")
	data, err := yaml.Marshal(b.definition)
	if err != nil {
		b.t.Fatalf("Failed to marshal settings: %v", err)
	}
	if err := os.WriteFile(settingsPath, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write settings: %v", err)
	}

	list := b.connections
	if list == nil {
		list = connections.List{}
	}
	encoded, err := connections.Encode(list, b.format)
	if err != nil {
		b.t.Fatalf("Failed to encode connections: %v", err)
	}
	if err := os.WriteFile(b.definition.ConnectionsPath, encoded, 0o600); err != nil {
		b.t.Fatalf("Failed to write connections: %v", err)
	}
	return settingsPath
}

// Build writes the files and returns a loaded Config.
func (b *TestConfigBuilder) Build() *config.Config {
	b.t.Helper()

	cfg := &config.Config{Path: b.Write(), Required: true}
	if err := cfg.Load(); err != nil {
		b.t.Fatalf("Failed to load settings: %v", err)
	}
	return cfg
}

// LoadConnections reads Connections.plist back.
func (b *TestConfigBuilder) LoadConnections() connections.List {
	b.t.Helper()

	store, err := connections.NewStore(b.definition.ConnectionsPath)
	if err != nil {
		b.t.Fatalf("Failed to open connections: %v", err)
	}
	list, err := store.Load()
	if err != nil {
		b.t.Fatalf("Failed to load connections: %v", err)
	}
	return list
}
