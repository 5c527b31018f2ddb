package permission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Tier describes one membership level.
type Tier struct {
	ID           int64
	Alias        string
	Role         string
	Capabilities []string
	Attributes   map[string]any
}

// Bundle is the resolved, read-only permission set of a tier.
type Bundle struct {
	tierID     int64
	alias      string
	role       string
	mask       Mask64
	registry   *Registry
	attributes map[string]any
}

// NewBundle resolves tier against registry. Every capability must be
// registered.
func NewBundle(registry *Registry, tier Tier) (*Bundle, error) {
	if registry == nil {
		return nil, errors.New("permission registry is nil")
	}

	b := &Bundle{
		tierID:     tier.ID,
		alias:      tier.Alias,
		role:       tier.Role,
		registry:   registry,
		attributes: make(map[string]any, len(tier.Attributes)),
	}
	for _, name := range tier.Capabilities {
		bit, ok := registry.Bit(name)
		if !ok {
			return nil, fmt.Errorf("capability not registered: %s", name)
		}
		b.mask.Set(bit)
	}
	for k, v := range tier.Attributes {
		b.attributes[k] = v
	}
	return b, nil
}

// EmptyBundle returns a bundle with no capabilities or attributes.
func EmptyBundle(tierID int64) *Bundle {
	return &Bundle{tierID: tierID, attributes: map[string]any{}}
}

// TierID returns the tier the bundle was built from.
func (b *Bundle) TierID() int64 { return b.tierID }

// Alias returns the tier's display name.
func (b *Bundle) Alias() string { return b.alias }

// Role returns the role granted to members of the tier.
func (b *Bundle) Role() string { return b.role }

// Mask returns a copy of the capability mask.
func (b *Bundle) Mask() Mask64 { return b.mask }

// Has reports whether the tier grants the named capability.
func (b *Bundle) Has(capability string) bool {
	if b.registry == nil {
		return false
	}
	bit, ok := b.registry.Bit(capability)
	if !ok {
		return false
	}
	_, rootReserved := b.registry.RootBit()
	return b.mask.Has(bit, rootReserved)
}

// Capabilities returns the granted capability names, sorted.
func (b *Bundle) Capabilities() []string {
	if b.registry == nil {
		return nil
	}
	var names []string
	for _, bit := range b.mask.Bits() {
		if name, ok := b.registry.Name(bit); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Get looks up key among the tier's fields ("id", "alias", "role",
// "capabilities"), then its attributes, and returns def when neither has
// it.
func (b *Bundle) Get(key string, def any) any {
	if b == nil {
		return def
	}
	switch key {
	case "id":
		return b.tierID
	case "alias":
		if b.alias != "" {
			return b.alias
		}
	case "role":
		if b.role != "" {
			return b.role
		}
	case "capabilities":
		return b.Capabilities()
	}
	if v, ok := b.attributes[key]; ok {
		return v
	}
	return def
}

// TierManager holds bundles for tiers registered at startup.
type TierManager struct {
	registry *Registry

	mu     sync.RWMutex
	tiers  map[int64]*Bundle
	frozen bool
}

// NewTierManager returns an empty manager over registry.
func NewTierManager(registry *Registry) *TierManager {
	return &TierManager{
		registry: registry,
		tiers:    make(map[int64]*Bundle),
	}
}

// RegisterTier resolves and stores tier.
func (tm *TierManager) RegisterTier(tier Tier) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.frozen {
		return errors.New("tier manager frozen")
	}

	if tier.ID <= 0 {
		return errors.New("tier id must be positive")
	}

	if _, exists := tm.tiers[tier.ID]; exists {
		return errors.New("tier already registered")
	}

	bundle, err := NewBundle(tm.registry, tier)
	if err != nil {
		return err
	}

	tm.tiers[tier.ID] = bundle
	return nil
}

// Bundle returns the bundle for tierID, or false if unknown.
func (tm *TierManager) Bundle(tierID int64) (*Bundle, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	b, ok := tm.tiers[tierID]
	return b, ok
}

// LoadForTier returns the tier's bundle, or an empty bundle for an unknown
// tier.
func (tm *TierManager) LoadForTier(_ context.Context, tierID int64) (*Bundle, error) {
	if b, ok := tm.Bundle(tierID); ok {
		return b, nil
	}
	return EmptyBundle(tierID), nil
}

// Freeze prevents further registrations.
func (tm *TierManager) Freeze() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.frozen = true
}

// Count returns the number of registered tiers.
func (tm *TierManager) Count() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.tiers)
}
