package core

import "errors"

// Common errors classified before propagation. The orchestrator maps every
// failure to one of two caller-visible outcomes; these values are retained
// internally for logging.
var (
	// ErrNoToken indicates no bearer credential was presented at all,
	// distinct from an invalid one.
	ErrNoToken = errors.New("no token provided")

	// ErrTokenInvalid covers signature mismatch, expiry, wrong issuer or
	// audience, and introspection reporting the token inactive. Callers are
	// never told which; the distinction would be a revocation oracle.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrStoreUnavailable indicates an entry-validation store call failed.
	// Entry validation fails closed, so this rejects the credential.
	ErrStoreUnavailable = errors.New("entry store unavailable")

	// ErrEntryRevoked indicates the backing authorization or token record
	// is missing or no longer valid.
	ErrEntryRevoked = errors.New("entry revoked or missing")
)
