package keychain

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// ErrItemNotFound is returned by a Reader when no item matches.
var ErrItemNotFound = errors.New("keychain item not found")

// Reader reads back generic-password items.
type Reader interface {
	Get(service, account string) (string, error)
}

// KeyringReader reads items through the OS keyring.
type KeyringReader struct{}

// NewKeyringReader returns a Reader backed by zalando/go-keyring.
func NewKeyringReader() *KeyringReader {
	return &KeyringReader{}
}

// Get returns the stored password for (service, account).
func (KeyringReader) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrItemNotFound
		}
		return "", err
	}
	return secret, nil
}

// Verify reads the item back and checks it holds want.
func Verify(r Reader, service, account, want string) error {
	got, err := r.Get(service, account)
	if err != nil {
		return &Error{Op: "verify", Service: service, Account: account, Err: err}
	}
	if got != want {
		return &Error{Op: "verify", Service: service, Account: account, Err: ErrMismatch}
	}
	return nil
}
