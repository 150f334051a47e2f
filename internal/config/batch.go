package config

import (
	_ "embed"
	"os"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/tpcreds/internal/errors"
)

//go:embed batch.schema.json
var batchSchema string

// BatchEntry is one connection to update from a batch file.
type BatchEntry struct {
	Connection string `yaml:"connection"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password,omitempty"`
	Create     bool   `yaml:"create,omitempty"`
}

// Batch is the batch file structure.
type Batch struct {
	Connections []BatchEntry `yaml:"connections"`
}

// LoadBatch reads and validates a batch file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to read batch file",
			Details:    err.Error(),
			Suggestion: "Check the --from path",
			Err:        err,
		}
	}

	if err := validate(data, batchSchema); err != nil {
		return nil, err
	}

	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in batch file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	return &b, nil
}
