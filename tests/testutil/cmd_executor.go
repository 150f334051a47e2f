package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockCommandExecutor provides a configurable mock for the codesign and
// security invocations.
type MockCommandExecutor struct {
	mu sync.Mutex

	// Responses maps command patterns to queued mock responses. Each call
	// matching a pattern consumes the head of its queue; the last response
	// is repeated once the queue is drained.
	// Key format: "command arg1 arg2" (space-separated command and args)
	Responses map[string][]MockResponse

	// patterns keeps registration order so longer, more specific patterns
	// registered later do not depend on map iteration order.
	patterns []string

	// DefaultResponse is used when no matching pattern is found.
	DefaultResponse *MockResponse

	// RecordedCalls stores all calls made to Execute for verification.
	RecordedCalls []RecordedCall

	// StrictMode causes Execute to fail if no matching response is found.
	StrictMode bool
}

// MockResponse defines the expected output for a mocked command.
type MockResponse struct {
	Stdout   []byte
	Stderr   []byte
	Err      error
	ExitCode int // When non-zero and Err is nil, an ExitError is returned
}

// ExitError mimics *os/exec.ExitError for the code paths that only need
// the exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated process exit status.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// RecordedCall stores information about a command execution.
type RecordedCall struct {
	Command string
	Args    []string
	Context context.Context
}

// Line renders the call as a single space-separated string.
func (c RecordedCall) Line() string {
	return strings.Join(append([]string{c.Command}, c.Args...), " ")
}

// HasArg reports whether flag appears in the call's arguments.
func (c RecordedCall) HasArg(flag string) bool {
	for _, a := range c.Args {
		if a == flag {
			return true
		}
	}
	return false
}

// ArgAfter returns the argument following flag, or "".
func (c RecordedCall) ArgAfter(flag string) string {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// NewMockCommandExecutor creates a new mock executor with empty responses.
func NewMockCommandExecutor() *MockCommandExecutor {
	return &MockCommandExecutor{
		Responses:     make(map[string][]MockResponse),
		RecordedCalls: make([]RecordedCall, 0),
	}
}

// Execute returns the mocked response for the given command.
func (m *MockCommandExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordedCalls = append(m.RecordedCalls, RecordedCall{
		Command: name,
		Args:    append([]string(nil), args...),
		Context: ctx,
	})

	key := buildKey(name, args)

	if pattern, ok := m.match(key); ok {
		return m.next(pattern).result()
	}

	if m.DefaultResponse != nil {
		return m.DefaultResponse.result()
	}

	if m.StrictMode {
		return nil, nil, fmt.Errorf("mock: no response configured for command: %s", key)
	}

	return []byte{}, []byte{}, nil
}

func (r MockResponse) result() ([]byte, []byte, error) {
	err := r.Err
	if err == nil && r.ExitCode != 0 {
		err = &ExitError{Code: r.ExitCode}
	}
	return r.Stdout, r.Stderr, err
}

// match picks the longest registered pattern that prefixes key.
func (m *MockCommandExecutor) match(key string) (string, bool) {
	best := ""
	found := false
	for _, pattern := range m.patterns {
		if strings.HasPrefix(key, pattern) && len(pattern) >= len(best) {
			best = pattern
			found = true
		}
	}
	return best, found
}

func (m *MockCommandExecutor) next(pattern string) MockResponse {
	queue := m.Responses[pattern]
	resp := queue[0]
	if len(queue) > 1 {
		m.Responses[pattern] = queue[1:]
	}
	return resp
}

func buildKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

// AddResponse queues one or more responses for a command prefix.
func (m *MockCommandExecutor) AddResponse(commandPattern string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Responses[commandPattern]; !ok {
		m.patterns = append(m.patterns, commandPattern)
	}
	m.Responses[commandPattern] = append(m.Responses[commandPattern], responses...)
}

// AddErrorResponse queues a failing response with the given stderr and exit code.
func (m *MockCommandExecutor) AddErrorResponse(commandPattern string, stderr string, exitCode int) {
	m.AddResponse(commandPattern, MockResponse{
		Stdout:   []byte{},
		Stderr:   []byte(stderr),
		ExitCode: exitCode,
	})
}

// GetCalls returns all recorded calls whose command line starts with prefix.
func (m *MockCommandExecutor) GetCalls(prefix string) []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []RecordedCall
	for _, call := range m.RecordedCalls {
		if strings.HasPrefix(call.Line(), prefix) {
			matches = append(matches, call)
		}
	}
	return matches
}

// CallCount returns the number of times Execute was called.
func (m *MockCommandExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordedCalls)
}

// Reset clears all recorded calls and responses.
func (m *MockCommandExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = make(map[string][]MockResponse)
	m.patterns = nil
	m.RecordedCalls = make([]RecordedCall, 0)
	m.DefaultResponse = nil
}

// AssertCalled verifies that a command prefix was called at least once.
func (m *MockCommandExecutor) AssertCalled(t interface{ Error(args ...interface{}) }, prefix string) bool {
	if len(m.GetCalls(prefix)) == 0 {
		t.Error("expected command", prefix, "to be called, but it was not")
		return false
	}
	return true
}

// AssertNotCalled verifies that a command prefix was never called.
func (m *MockCommandExecutor) AssertNotCalled(t interface{ Error(args ...interface{}) }, prefix string) bool {
	calls := m.GetCalls(prefix)
	if len(calls) > 0 {
		t.Error("expected command", prefix, "to not be called, but it was called", len(calls), "times")
		return false
	}
	return true
}

// AssertCallCount verifies the exact number of times a command prefix was called.
func (m *MockCommandExecutor) AssertCallCount(t interface{ Error(args ...interface{}) }, prefix string, expected int) bool {
	calls := m.GetCalls(prefix)
	if len(calls) != expected {
		t.Error("expected command", prefix, "to be called", expected, "times, but was called", len(calls), "times")
		return false
	}
	return true
}

// Command prefixes used by the keychain and codesign packages.
const (
	CodesignCmd      = "codesign -dv"
	AddPasswordCmd   = "security add-generic-password"
	PartitionListCmd = "security set-generic-password-partition-list"
	FindPasswordCmd  = "security find-generic-password"
)

// ItemExistsExitCode is what security add-generic-password exits with when
// the item is already in the keychain (ENOTSUP).
const ItemExistsExitCode = 45

// ItemNotFoundExitCode is what security find-generic-password exits with
// when no item matches (errSecItemNotFound).
const ItemNotFoundExitCode = 44

// CodesignMockResponses provides pre-configured codesign output.
type CodesignMockResponses struct{}

// Signed returns codesign -dv --verbose=4 output for a bundle signed by teamID.
// codesign writes these lines to stderr.
func (CodesignMockResponses) Signed(appPath, teamID string) MockResponse {
	return MockResponse{
		Stderr: []byte(fmt.Sprintf(`Executable=%s/Contents/MacOS/TablePlus
Identifier=com.tinyapp.TablePlus
Format=app bundle with Mach-O universal (x86_64 arm64)
CodeDirectory v=20500 size=41373 flags=0x10000(runtime) hashes=1282+7 location=embedded
Hash type=sha256 size=32
CandidateCDHash sha256=3c1b7a
Signature size=8980
Authority=Developer ID Application: TinyApp, Ltd (%s)
Authority=Developer ID Certification Authority
Authority=Apple Root CA
Timestamp=Apr 2, 2024 at 10:15:42
Info.plist entries=32
TeamIdentifier=%s
Runtime Version=14.2.0
Sealed Resources version=2 rules=13 files=460
Internal requirements count=1 size=216
`, appPath, teamID, teamID)),
	}
}

// Unsigned returns output for a bundle with no team identifier.
func (CodesignMockResponses) Unsigned(appPath string) MockResponse {
	return MockResponse{
		Stderr: []byte(fmt.Sprintf("Executable=%s/Contents/MacOS/TablePlus\nIdentifier=com.tinyapp.TablePlus\nSignature=adhoc\nTeamIdentifier=not set\n", appPath)),
	}
}
