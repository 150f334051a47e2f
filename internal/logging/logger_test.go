package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "secret is redacted", input: "my-secret-password"},
		{name: "empty secret is still redacted", input: ""},
		{name: "complex secret is redacted", input: "password123!@#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "[REDACTED]", Secret(tt.input).String())
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", Secret(tt.input)))
		})
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)

	logger.Info("updated %s", "Prod")
	logger.Warn("careful")
	logger.Error("failed")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "✓ updated Prod\n")
	assert.Contains(t, out, "⚠ careful\n")
	assert.Contains(t, out, "✗ failed\n")
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "\033[")
}

func TestLoggerDebugMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, false)

	logger.Debug("password is %s", Secret("hunter22"))

	assert.Contains(t, buf.String(), "[DEBUG]")
	assert.Contains(t, buf.String(), "[REDACTED]")
	assert.NotContains(t, buf.String(), "hunter22")
	assert.Same(t, &buf, logger.Writer())
}

func TestRedact(t *testing.T) {
	got := Redact("login as admin with s3cr3t-pw", []string{"s3cr3t-pw", "ab"})
	assert.Equal(t, "login as admin with [REDACTED]", got)
}

func TestRedactArgs(t *testing.T) {
	args := []string{"add-generic-password", "-a", "abc_database", "-w", "secret", "-k"}
	got := RedactArgs(args, "-w", "-k")

	assert.Equal(t, []string{"add-generic-password", "-a", "abc_database", "-w", "[REDACTED]", "-k"}, got)
	assert.Equal(t, "secret", args[4], "input must not be modified")
}
