// Package credentials holds the per-tenant gateway subscription keys and
// refreshes them from the secret service during a key rotation window.
package credentials

import (
	"fmt"
	"strings"
)

// Slot identifies which of a tenant's two gateway keys a credential came from.
type Slot string

// Known slots.
const (
	SlotUnknown   Slot = "unknown"
	SlotPrimary   Slot = "primary"
	SlotSecondary Slot = "secondary"
)

// ParseSlot accepts "primary", "secondary" or "" / "unknown".
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case "", SlotUnknown:
		return SlotUnknown, nil
	case SlotPrimary:
		return SlotPrimary, nil
	case SlotSecondary:
		return SlotSecondary, nil
	default:
		return SlotUnknown, fmt.Errorf("invalid slot %q: must be primary or secondary", s)
	}
}

// Freshness tells whether a credential is the one the store started with
// (or was Set explicitly) or one fetched by Refresh.
type Freshness string

// Freshness values.
const (
	FreshnessCurrent Freshness = "current"
	FreshnessRotated Freshness = "rotated"
)

// Credential is a snapshot of a tenant's key.
type Credential struct {
	Tenant    string
	Slot      Slot
	Material  string
	Freshness Freshness
}

// String never includes the material.
func (c Credential) String() string {
	return fmt.Sprintf("credential{tenant=%s slot=%s freshness=%s material=[REDACTED]}", c.Tenant, c.Slot, c.Freshness)
}

// GoString keeps %#v from printing the material.
func (c Credential) GoString() string {
	return c.String()
}

// PrimaryKeyName is the secret holding a tenant's primary gateway key.
func PrimaryKeyName(tenant string) string {
	return tenant + "-apim-primary-key"
}

// SecondaryKeyName is the secret holding a tenant's secondary gateway key.
func SecondaryKeyName(tenant string) string {
	return tenant + "-apim-secondary-key"
}

// RotationMetadataName is the secret holding a tenant's rotation metadata.
func RotationMetadataName(tenant string) string {
	return tenant + "-apim-rotation-metadata"
}

type candidate struct {
	name string
	slot Slot
}

// candidates returns the secret names to try, primary first unless the
// slot is secondary.
func candidates(tenant string, slot Slot) []candidate {
	primary := candidate{name: PrimaryKeyName(tenant), slot: SlotPrimary}
	secondary := candidate{name: SecondaryKeyName(tenant), slot: SlotSecondary}
	if slot == SlotSecondary {
		return []candidate{secondary, primary}
	}
	return []candidate{primary, secondary}
}
