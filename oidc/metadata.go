package oidckit

import (
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/oauth2"
)

// ProviderMetadata is the discovery-backed description of an authorization
// server, with its signing keys copied in so downstream consumers read keys
// from one place. Immutable once fetched; refreshes replace the whole value.
type ProviderMetadata struct {
	Issuer                string
	AuthorizationEndpoint string
	TokenEndpoint         string
	IntrospectionEndpoint string
	JWKSURI               string
	Algorithms            []string

	// SigningKeys is the key set fetched from JWKSURI. Invariant: no two
	// keys share a key id.
	SigningKeys jwk.Set
}

// Endpoint returns the provider's OAuth2 endpoint pair for callers that need
// to drive golang.org/x/oauth2 flows against this server.
func (m *ProviderMetadata) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  m.AuthorizationEndpoint,
		TokenURL: m.TokenEndpoint,
	}
}

// KeyByID returns the signing key with the given key id, if present.
func (m *ProviderMetadata) KeyByID(kid string) (jwk.Key, bool) {
	if m.SigningKeys == nil {
		return nil, false
	}
	return m.SigningKeys.LookupKeyID(kid)
}
