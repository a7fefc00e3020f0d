package fakes

import (
	"context"
	"fmt"
	"sync"
)

// FakeVault is an in-memory secret service satisfying vault.Vault.
type FakeVault struct {
	mu sync.Mutex

	BackendName  string
	InstanceName string
	// SessionErr is returned by CheckSession when set
	SessionErr error
	// Secrets maps secret names to values
	Secrets map[string]string
	// Errors maps secret names to errors to return
	Errors map[string]error
	// Lookups records every requested secret name, in order
	Lookups []string
}

// NewFakeVault returns a FakeVault with a configured instance name.
func NewFakeVault() *FakeVault {
	return &FakeVault{
		BackendName:  "fake",
		InstanceName: "kv-test",
		Secrets:      make(map[string]string),
		Errors:       make(map[string]error),
	}
}

// Put stores a secret value.
func (f *FakeVault) Put(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// LookupsSnapshot returns a copy of the recorded lookups.
func (f *FakeVault) LookupsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Lookups...)
}

// Name returns the backend name.
func (f *FakeVault) Name() string { return f.BackendName }

// Instance returns the configured instance name.
func (f *FakeVault) Instance() string { return f.InstanceName }

// CheckSession returns SessionErr.
func (f *FakeVault) CheckSession(ctx context.Context) error {
	return f.SessionErr
}

// GetSecret returns the stored secret, a configured error, or a not-found error.
func (f *FakeVault) GetSecret(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Lookups = append(f.Lookups, name)
	if err, ok := f.Errors[name]; ok {
		return "", err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", name)
	}
	return value, nil
}
