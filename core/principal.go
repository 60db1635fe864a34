package core

import (
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller produced by a successful validation
// run: an identity plus the claim set the token (or introspection response)
// carried.
type Principal struct {
	Subject string
	Claims  jwt.MapClaims
}

// Claim returns the named claim, or ("", false) if absent or not a string.
func (p *Principal) Claim(name string) (string, bool) {
	v, ok := p.Claims[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Scopes splits the space-delimited "scope" claim per RFC 8693.
func (p *Principal) Scopes() []string {
	raw, ok := p.Claim("scope")
	if !ok || raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// HasScope reports whether the principal carries the given scope.
func (p *Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}
