package pipeline

import "github.com/open-rails/bearerkit/core"

// Filter predicates gating handler participation. A nil context is a
// programming error and panics rather than silently returning false.

// RequireTokenExtracted is true iff a token string was pulled from the
// request.
func RequireTokenExtracted(pc *Context) bool {
	mustContext(pc)
	return pc.RawToken != ""
}

// RequireTokenValidated is true iff a prior stage accepted the token.
func RequireTokenValidated(pc *Context) bool {
	mustContext(pc)
	return pc.TokenValidated
}

// RequireLocalValidation is true iff direct (local signature) validation is
// configured.
func RequireLocalValidation(pc *Context) bool {
	mustContext(pc)
	return pc.Options.ValidationType == core.ValidationDirect
}

// RequireIntrospectionValidation is true iff introspection validation is
// configured.
func RequireIntrospectionValidation(pc *Context) bool {
	mustContext(pc)
	return pc.Options.ValidationType == core.ValidationIntrospection
}

// RequireAuthorizationEntryValidationEnabled is true iff the store-backed
// authorization revocation check is enabled.
func RequireAuthorizationEntryValidationEnabled(pc *Context) bool {
	mustContext(pc)
	return pc.Options.EnableAuthorizationEntryValidation
}

// RequireTokenEntryValidationEnabled is true iff the store-backed token
// revocation check is enabled.
func RequireTokenEntryValidationEnabled(pc *Context) bool {
	mustContext(pc)
	return pc.Options.EnableTokenEntryValidation
}

// All combines filters conjunctively.
func All(filters ...Filter) Filter {
	return func(pc *Context) bool {
		for _, f := range filters {
			if !f(pc) {
				return false
			}
		}
		return true
	}
}

func mustContext(pc *Context) {
	if pc == nil {
		panic("pipeline: filter evaluated against nil context")
	}
}
