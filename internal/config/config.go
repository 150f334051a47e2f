package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/logging"
)

// Defaults matching a stock TablePlus installation.
const (
	DefaultPath            = "~/.config/tpcreds/config.yaml"
	DefaultAppPath         = "/Applications/TablePlus.app"
	DefaultConnectionsPath = "~/Library/Application Support/com.tinyapp.TablePlus/Data/Connections.plist"
	DefaultAccountTemplate = "{ID}_database"
	DefaultServiceName     = "com.tableplus.TablePlus"
	DefaultLabel           = "TablePlus"
	DefaultVerifyTimeout   = 10 * time.Second
)

//go:embed schema.json
var settingsSchema string

// Config holds the runtime configuration
type Config struct {
	Path           string
	Logger         *logging.Logger
	NonInteractive bool
	MetricsFile    string

	// Required makes a missing settings file an error. It is set when the
	// path was given explicitly.
	Required bool

	Definition *Definition
}

// Definition is the settings file structure. Every field is optional.
type Definition struct {
	Version           int      `yaml:"version"`
	AppPath           string   `yaml:"app_path,omitempty"`
	ConnectionsPath   string   `yaml:"connections_path,omitempty"`
	AccountTemplate   string   `yaml:"account_template,omitempty"`
	ServiceName       string   `yaml:"service_name,omitempty"`
	Label             *string  `yaml:"label,omitempty"` // nil means DefaultLabel, "" means no label
	TeamID            string   `yaml:"team_id,omitempty"`
	IncludeSystemTool bool     `yaml:"include_system_tool,omitempty"`
	AccessApps        []string `yaml:"access_apps,omitempty"`
	VerifyLogin       bool     `yaml:"verify_login,omitempty"`
	VerifyStored      bool     `yaml:"verify_stored,omitempty"`
	VerifyTimeout     string   `yaml:"verify_timeout,omitempty"`
	VerifySSLMode     string   `yaml:"verify_sslmode,omitempty"`
	Tools             Tools    `yaml:"tools,omitempty"`
}

// Tools overrides the external binaries.
type Tools struct {
	Codesign string `yaml:"codesign,omitempty"`
	Security string `yaml:"security,omitempty"`
}

// Load reads and validates the settings file. A missing file yields the
// defaults unless Required is set.
func (c *Config) Load() error {
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !c.Required {
			if c.Logger != nil {
				c.Logger.Debug("No settings file at %s, using defaults", path)
			}
			c.Definition = &Definition{}
			c.Definition.applyDefaults()
			return nil
		}
		if os.IsNotExist(err) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config path or omit it to use defaults",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Parse validates data against the settings schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	if err := validate(data, settingsSchema); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if def.VerifyTimeout != "" {
		if _, err := time.ParseDuration(def.VerifyTimeout); err != nil {
			return nil, dserrors.ConfigError{
				Field:      "verify_timeout",
				Value:      def.VerifyTimeout,
				Message:    "invalid duration",
				Suggestion: "Use a Go duration such as 10s or 1m",
			}
		}
	}

	def.applyDefaults()
	return &def, nil
}

func (d *Definition) applyDefaults() {
	if d.AppPath == "" {
		d.AppPath = DefaultAppPath
	}
	if d.ConnectionsPath == "" {
		d.ConnectionsPath = DefaultConnectionsPath
	}
	if d.AccountTemplate == "" {
		d.AccountTemplate = DefaultAccountTemplate
	}
	if d.ServiceName == "" {
		d.ServiceName = DefaultServiceName
	}
	if d.Label == nil {
		label := DefaultLabel
		d.Label = &label
	}
}

// LabelValue returns the keychain label, "" meaning none.
func (d *Definition) LabelValue() string {
	if d.Label == nil {
		return DefaultLabel
	}
	return *d.Label
}

// VerifyTimeoutDuration returns the login verification timeout.
func (d *Definition) VerifyTimeoutDuration() time.Duration {
	if d.VerifyTimeout == "" {
		return DefaultVerifyTimeout
	}
	dur, err := time.ParseDuration(d.VerifyTimeout)
	if err != nil || dur <= 0 {
		return DefaultVerifyTimeout
	}
	return dur
}

// validate checks YAML data against a JSON schema.
func validate(data []byte, schema string) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return dserrors.ConfigError{
			Message:    "invalid YAML syntax",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal data for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return dserrors.ConfigError{
			Message:    "schema validation failed:\n  - " + strings.Join(errorMessages, "\n  - "),
			Suggestion: "Fix the listed fields",
		}
	}
	return nil
}
