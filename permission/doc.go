// Package permission models membership tiers and the capabilities they
// grant.
//
// A [Registry] assigns each capability name a bit in a [Mask64]. A [Tier]
// lists capability names plus free-form attributes; [NewBundle] resolves it
// into an immutable [Bundle] that answers capability checks and attribute
// lookups. [TierManager] holds the bundles of statically configured tiers.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. Persistent
// tiers are loaded by the store package, which builds bundles with
// [NewBundle].
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import memberAuth, session or store.
//   - Resize masks after registry construction.
package permission
