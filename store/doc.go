// Package store is the SQLite persistence layer for memberAuth.
//
// [SQLiteStore] implements memberAuth.MemberStore and
// memberAuth.SecretProvider over three tables: members, membership_levels
// and site_secrets. Membership levels carry both the subscription length
// joined into every member lookup and the capability list loaded into a
// permission.TierManager by [SQLiteStore.LoadTiers].
//
// Site secrets are generated on first use and survive restarts, so cookies
// stay valid across deploys until [SQLiteStore.RotateSecret] is called.
//
// The driver is modernc.org/sqlite (pure Go, no cgo).
package store
