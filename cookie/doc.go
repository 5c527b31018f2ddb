// Package cookie implements the signed login cookie used by memberAuth.
//
// # Wire format
//
//	username|expiration|hexdigest
//
// expiration is a Unix timestamp in canonical decimal form. The digest is a
// two-stage HMAC-MD5: a per-cookie key is derived from the site secret, a
// fixed pepper, the username, a four byte fragment of the stored password
// hash and the expiration; the digest is that key applied to
// "username|expiration". Changing the password hash changes the fragment and
// so invalidates every cookie issued before the change.
//
// # Architecture boundaries
//
// This package is pure: it never reads request state, looks up members or
// touches storage. Slot selection (plain or TLS cookie), grace policy and
// secret lookup belong to the root package.
//
// # What this package must NOT do
//
//   - Import memberAuth or any storage package.
//   - Compare digests with non constant-time equality.
package cookie
