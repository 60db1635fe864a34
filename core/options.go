package core

import "time"

// ValidationType selects how access tokens are checked.
type ValidationType string

const (
	// ValidationDirect verifies token signatures and claims locally against
	// the provider's published signing keys.
	ValidationDirect ValidationType = "direct"
	// ValidationIntrospection asks the authorization server whether the
	// token is currently active.
	ValidationIntrospection ValidationType = "introspection"
)

// Options configures a validation run. Read once at startup and treated as
// immutable for the process lifetime; replace the whole value to reconfigure.
type Options struct {
	// Address is the authorization server origin (e.g. https://auth.example.com).
	Address string

	// Audience enforces that validated tokens contain this audience.
	// Empty disables the audience check.
	Audience string

	// ValidationType selects direct or introspection validation.
	// Defaults to ValidationDirect.
	ValidationType ValidationType

	// ClientID and ClientSecret authenticate introspection calls.
	ClientID     string
	ClientSecret string

	// EnableAuthorizationEntryValidation confirms via the Store that the
	// authorization record backing a token has not been revoked.
	EnableAuthorizationEntryValidation bool

	// EnableTokenEntryValidation confirms via the Store that the token
	// record itself has not been revoked.
	EnableTokenEntryValidation bool

	// RetryAttempts bounds outbound HTTP attempts to the authorization
	// server. Defaults to 4.
	RetryAttempts int

	// BackoffBase is the unit for the exponential delay between attempts
	// (base * 2^attempt). Defaults to 1s.
	BackoffBase time.Duration

	// HTTPTimeout applies per HTTP attempt, not per validation run.
	// Defaults to 10s.
	HTTPTimeout time.Duration

	// CacheTTL is the freshness window for provider metadata and signing
	// keys. Defaults to 15 minutes.
	CacheTTL time.Duration

	// Skew tolerates clock drift when checking time-based claims.
	Skew time.Duration
}

// WithDefaults returns a copy of o with zero-valued knobs replaced by
// their defaults.
func (o Options) WithDefaults() Options {
	if o.ValidationType == "" {
		o.ValidationType = ValidationDirect
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 4
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 10 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 15 * time.Minute
	}
	return o
}
