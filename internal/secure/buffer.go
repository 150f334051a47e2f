// Package secure keeps credentials entered at runtime encrypted in memory.
//
// Values are sealed in a memguard enclave (XSalsa20Poly1305, mlocked pages)
// and only decrypted into a locked buffer for the moment they are needed.
// Call memguard.Purge from main before exit to wipe remaining key material.
package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Reveal after Destroy.
var ErrDestroyed = errors.New("secure buffer destroyed")

// Buffer holds one secret sealed in a memguard enclave.
type Buffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewBuffer seals data. The caller's slice is wiped.
func NewBuffer(data []byte) *Buffer {
	if len(data) == 0 {
		return &Buffer{empty: true}
	}
	// NewEnclave wipes the source slice.
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewBufferFromString seals s.
func NewBufferFromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Reveal decrypts the secret and returns a copy of it as a string. The
// plaintext locked buffer is destroyed before returning, so the result must
// not alias its pages.
func (b *Buffer) Reveal() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return "", ErrDestroyed
	}
	if b.empty {
		return "", nil
	}

	locked, err := b.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. It is safe to call more than once.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.enclave = nil
	b.destroyed = true
}
