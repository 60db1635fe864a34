package oidckit

import (
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// MetadataFromPinned builds degraded-mode provider metadata from operator-
// pinned RSA public keys. It carries no endpoints, so it supports local
// validation only; introspection still requires live discovery.
func MetadataFromPinned(issuer string, keys map[string]*rsa.PublicKey) (*ProviderMetadata, error) {
	set := jwk.NewSet()
	for kid, pub := range keys {
		key, err := jwk.FromRaw(pub)
		if err != nil {
			return nil, fmt.Errorf("oidc: pinned key %s: %w", kid, err)
		}
		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, fmt.Errorf("oidc: pinned key %s: %w", kid, err)
		}
		if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
			return nil, fmt.Errorf("oidc: pinned key %s: %w", kid, err)
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("oidc: pinned key %s: %w", kid, err)
		}
	}
	return &ProviderMetadata{
		Issuer:      issuer,
		Algorithms:  []string{"RS256"},
		SigningKeys: set,
	}, nil
}
