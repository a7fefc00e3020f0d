package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/apimprobe/internal/config"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/logging"
	"github.com/systmms/apimprobe/internal/secure"
	"github.com/systmms/apimprobe/internal/vault"
)

// KeyReader reads a tenant key from a local store such as the OS keyring.
type KeyReader interface {
	Get(tenant string) (string, error)
}

type entry struct {
	slot      Slot
	freshness Freshness
	material  *secure.Material
}

// Options configures a Store.
type Options struct {
	// Vault is the secret service Refresh reads from. May be nil when
	// rotation fallback is not used.
	Vault           vault.Vault
	FallbackEnabled bool
	Logger          *logging.Logger
}

// Store holds one current credential per tenant. Get, Set and Refresh are
// safe for concurrent use; Refresh is serialized per tenant so a rotation is
// fully applied before any caller observes it.
type Store struct {
	vault           vault.Vault
	fallbackEnabled bool
	logger          *logging.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	refreshMu sync.Mutex
	refreshes map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		vault:           opts.Vault,
		fallbackEnabled: opts.FallbackEnabled,
		logger:          logger,
		entries:         make(map[string]*entry),
		refreshes:       make(map[string]*sync.Mutex),
	}
}

// Get returns the tenant's current credential.
func (s *Store) Get(tenant string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[tenant]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", aperrors.ErrUnknownTenant, tenant)
	}

	// Revealed under the read lock; replace destroys old material only after
	// it has taken the write lock.
	material, err := e.material.Reveal()
	if err != nil {
		return Credential{}, fmt.Errorf("open credential for %s: %w", tenant, err)
	}
	return Credential{
		Tenant:    tenant,
		Slot:      e.slot,
		Material:  material,
		Freshness: e.freshness,
	}, nil
}

// Set overwrites the tenant's credential. The slot becomes unknown.
func (s *Store) Set(tenant, material string) {
	s.replace(tenant, &entry{
		slot:      SlotUnknown,
		freshness: FreshnessCurrent,
		material:  secure.NewMaterial(material),
	})
}

func (s *Store) replace(tenant string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old := s.entries[tenant]; old != nil {
		old.material.Destroy()
	}
	s.entries[tenant] = e
}

// Tenants lists known tenants in sorted order.
func (s *Store) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FallbackEnabled reports whether Refresh is allowed.
func (s *Store) FallbackEnabled() bool {
	return s.fallbackEnabled
}

func (s *Store) tenantLock(tenant string) *sync.Mutex {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	l, ok := s.refreshes[tenant]
	if !ok {
		l = &sync.Mutex{}
		s.refreshes[tenant] = l
	}
	return l
}

// Refresh fetches the tenant's key from the secret service and makes it the
// current credential. With preferred == SlotUnknown the rotation metadata
// decides which slot is tried first; missing or malformed metadata means
// primary first.
func (s *Store) Refresh(ctx context.Context, tenant string, preferred Slot) (Credential, error) {
	if !s.fallbackEnabled {
		return Credential{}, fmt.Errorf("refresh %s: %w", tenant, aperrors.ErrFallbackDisabled)
	}
	if s.vault == nil {
		return Credential{}, fmt.Errorf("refresh %s: %w", tenant, aperrors.ErrUnconfigured)
	}
	if err := s.vault.CheckSession(ctx); err != nil {
		return Credential{}, fmt.Errorf("refresh %s: %w: %w", tenant, aperrors.ErrUnauthenticated, err)
	}
	if s.vault.Instance() == "" {
		return Credential{}, fmt.Errorf("refresh %s: %s: %w", tenant, s.vault.Name(), aperrors.ErrUnconfigured)
	}

	lock := s.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	slot := preferred
	if slot == "" {
		slot = SlotUnknown
	}
	if slot == SlotUnknown {
		slot = s.safeSlot(ctx, tenant)
	}

	var lookupErrs []error
	for _, c := range candidates(tenant, slot) {
		value, err := s.vault.GetSecret(ctx, c.name)
		if err != nil {
			s.logger.Debug("Secret %s unavailable: %v", c.name, err)
			lookupErrs = append(lookupErrs, err)
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			s.logger.Debug("Secret %s is empty", c.name)
			lookupErrs = append(lookupErrs, fmt.Errorf("secret %s is empty", c.name))
			continue
		}

		s.replace(tenant, &entry{
			slot:      c.slot,
			freshness: FreshnessRotated,
			material:  secure.NewMaterial(value),
		})
		s.logger.Info("Rotated credential for %s to %s slot (%s)", tenant, c.slot, logging.Secret(value))

		return Credential{
			Tenant:    tenant,
			Slot:      c.slot,
			Material:  value,
			Freshness: FreshnessRotated,
		}, nil
	}

	return Credential{}, fmt.Errorf("refresh %s: %w: %w", tenant, aperrors.ErrVaultLookupFailed, errors.Join(lookupErrs...))
}

// safeSlot reads the rotation metadata; any failure yields SlotUnknown.
func (s *Store) safeSlot(ctx context.Context, tenant string) Slot {
	raw, err := s.vault.GetSecret(ctx, RotationMetadataName(tenant))
	if err != nil {
		s.logger.Debug("No rotation metadata for %s: %v", tenant, err)
		return SlotUnknown
	}
	md, err := ParseRotationMetadata(tenant, raw)
	if err != nil {
		s.logger.Warn("Ignoring rotation metadata for %s: %v", tenant, err)
		return SlotUnknown
	}
	if md.SafeSlot == nil {
		return SlotUnknown
	}
	return *md.SafeSlot
}

// Seed registers every configured tenant. A tenant's starting key comes
// from its environment variable, else from keys (when keyring is enabled for
// the tenant). Tenants with no key are still registered with an empty key
// so the first call can fail with 401 and trigger rotation.
func (s *Store) Seed(def *config.Definition, getenv func(string) string, keys KeyReader) {
	for _, tenant := range def.TenantNames() {
		tc := def.Tenants[tenant]

		material := getenv(tc.KeyEnv)
		if material == "" && tc.Keyring && keys != nil {
			value, err := keys.Get(tenant)
			if err != nil {
				s.logger.Debug("No keyring entry for %s: %v", tenant, err)
			}
			material = value
		}
		if material == "" {
			s.logger.Warn("No starting key for tenant %s (set %s)", tenant, tc.KeyEnv)
		}
		s.Set(tenant, material)
	}
}
