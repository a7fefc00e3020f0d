package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned by Reveal after Destroy has been called.
var ErrDestroyed = errors.New("secure material has been destroyed")

// Material is a credential value sealed in a memguard enclave.
// The zero value is not usable; create one with NewMaterial.
type Material struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewMaterial seals value. memguard refuses zero-length enclaves, so an empty
// value is tracked with a flag instead.
func NewMaterial(value string) *Material {
	if value == "" {
		return &Material{empty: true}
	}
	// NewEnclave wipes its input; []byte(value) is a private copy.
	return &Material{enclave: memguard.NewEnclave([]byte(value))}
}

// Reveal opens the enclave and returns a copy of the plaintext.
func (m *Material) Reveal() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.destroyed {
		return "", ErrDestroyed
	}
	if m.empty {
		return "", nil
	}

	locked, err := m.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	return string(locked.Bytes()), nil
}

// Destroy drops the enclave. Idempotent.
func (m *Material) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enclave = nil
	m.destroyed = true
}

// Purge wipes every memguard allocation in the process. Call once at exit.
func Purge() {
	memguard.Purge()
}
