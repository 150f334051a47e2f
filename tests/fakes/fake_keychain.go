package fakes

import (
	"context"
	"sync"

	"github.com/systmms/tpcreds/internal/keychain"
	"github.com/systmms/tpcreds/internal/prompt"
)

// FakeKeychainReader is a test double for keychain.Reader
type FakeKeychainReader struct {
	mu sync.Mutex

	// Secrets is a map of service -> account -> value
	Secrets map[string]map[string]string

	// GetErr is returned by Get() if set (overrides Secrets lookup)
	GetErr error

	// Reads counts Get calls.
	Reads int
}

// NewFakeKeychainReader creates an empty fake keychain
func NewFakeKeychainReader() *FakeKeychainReader {
	return &FakeKeychainReader{Secrets: make(map[string]map[string]string)}
}

// SetSecret adds a secret to the fake keychain
func (f *FakeKeychainReader) SetSecret(service, account, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Secrets[service] == nil {
		f.Secrets[service] = make(map[string]string)
	}
	f.Secrets[service][account] = value
}

// Get retrieves a secret from the fake keychain
func (f *FakeKeychainReader) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.GetErr != nil {
		return "", f.GetErr
	}
	if accounts, ok := f.Secrets[service]; ok {
		if value, ok := accounts[account]; ok {
			return value, nil
		}
	}
	return "", keychain.ErrItemNotFound
}

// FakeCredentialProvider is a test double for prompt.CredentialProvider
// that records how often it was asked.
type FakeCredentialProvider struct {
	Password string
	Err      error
	Calls    int
}

// KeychainPassword returns the configured password or error.
func (f *FakeCredentialProvider) KeychainPassword(context.Context) (string, error) {
	f.Calls++
	return f.Password, f.Err
}

var (
	_ keychain.Reader           = (*FakeKeychainReader)(nil)
	_ prompt.CredentialProvider = (*FakeCredentialProvider)(nil)
)
