package keychain

import (
	"errors"
	"fmt"
)

// Error wraps keychain failures with the item they concern.
type Error struct {
	Op      string // Operation: "verify", "read"
	Service string
	Account string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("keychain %s error for %s/%s: %v", e.Op, e.Service, e.Account, e.Err)
	}
	return fmt.Sprintf("keychain %s error for %s/%s", e.Op, e.Service, e.Account)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Keychain sentinel errors
var (
	ErrMismatch            = errors.New("stored password does not match")
	ErrUnsupportedPlatform = errors.New("keychain updates are only supported on macOS")
)
