package vault

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name tenant keys are stored under.
const KeyringService = "apimprobe"

// Keyring reads and writes tenant keys in the OS keyring (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager). The account name is
// the tenant.
type Keyring struct {
	Service string
}

// NewKeyring returns a Keyring for KeyringService.
func NewKeyring() *Keyring {
	return &Keyring{Service: KeyringService}
}

// Get returns the stored key for tenant.
func (k *Keyring) Get(tenant string) (string, error) {
	value, err := keyring.Get(k.Service, tenant)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", notFound(tenant, err)
		}
		return "", fmt.Errorf("keyring lookup for %s: %w", tenant, err)
	}
	return value, nil
}

// Set stores a key for tenant.
func (k *Keyring) Set(tenant, value string) error {
	if err := keyring.Set(k.Service, tenant, value); err != nil {
		return fmt.Errorf("keyring store for %s: %w", tenant, err)
	}
	return nil
}
