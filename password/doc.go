// Package password hashes and checks member passwords.
//
// Stored member hashes come from several generations of software, so the
// package ships one [Scheme] per format and a [Multi] checker that picks the
// scheme from the hash prefix:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>   Argon2
//	$2a$ / $2b$ / $2y$                                               Bcrypt
//	$wp$2y$                                                          WordPress (bcrypt over HMAC-SHA384)
//	$P$ / $H$ / 32 hex chars                                         Phpass (portable MD5, legacy MD5)
//
// New hashes are produced by whichever [Hasher] the caller configures;
// Argon2 is the default.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse history) is enforced by the caller.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other memberAuth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
