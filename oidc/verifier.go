package oidckit

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrKeyNotFound is returned when a token names a key id that is absent from
// the provider's current signing key set. Callers typically refresh cached
// metadata once before treating the token as invalid (key rotation).
var ErrKeyNotFound = errors.New("oidc: signing key not found for token")

// AccessTokenVerifier validates access tokens locally against provider
// metadata: signature, issuer, audience, and time-based claims.
type AccessTokenVerifier struct {
	audience string
	skew     time.Duration
}

// AccessVerifierOpt configures an AccessTokenVerifier.
type AccessVerifierOpt func(*AccessTokenVerifier)

// WithAudience requires the token to contain the given audience.
func WithAudience(aud string) AccessVerifierOpt {
	return func(v *AccessTokenVerifier) { v.audience = aud }
}

// WithAcceptableSkew tolerates clock drift when checking exp/nbf/iat.
func WithAcceptableSkew(d time.Duration) AccessVerifierOpt {
	return func(v *AccessTokenVerifier) { v.skew = d }
}

// NewAccessTokenVerifier builds a verifier.
func NewAccessTokenVerifier(opts ...AccessVerifierOpt) *AccessTokenVerifier {
	v := &AccessTokenVerifier{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// KeyID extracts the key identifier from the token's protected header
// without verifying the signature.
func KeyID(rawToken string) (string, error) {
	msg, err := jws.ParseString(rawToken)
	if err != nil {
		return "", fmt.Errorf("oidc: malformed token: %w", err)
	}
	sigs := msg.Signatures()
	if len(sigs) == 0 {
		return "", errors.New("oidc: token has no signature")
	}
	return sigs[0].ProtectedHeaders().KeyID(), nil
}

// Verify checks the token against md and returns its full claim set.
// A key id absent from md's signing keys yields ErrKeyNotFound so the caller
// can refresh its cached metadata and retry once.
func (v *AccessTokenVerifier) Verify(ctx context.Context, rawToken string, md *ProviderMetadata) (gojwt.MapClaims, error) {
	if md == nil || md.SigningKeys == nil {
		return nil, errors.New("oidc: missing provider metadata")
	}

	kid, err := KeyID(rawToken)
	if err != nil {
		return nil, err
	}
	if _, ok := md.KeyByID(kid); !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKeySet(md.SigningKeys),
		jwt.WithValidate(true),
		jwt.WithIssuer(md.Issuer),
		jwt.WithContext(ctx),
	}
	if v.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.audience))
	}
	if v.skew > 0 {
		parseOpts = append(parseOpts, jwt.WithAcceptableSkew(v.skew))
	}

	token, err := jwt.ParseString(rawToken, parseOpts...)
	if err != nil {
		return nil, fmt.Errorf("oidc: token verification failed: %w", err)
	}

	m, err := token.AsMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("oidc: cannot read claims: %w", err)
	}
	claims := make(gojwt.MapClaims, len(m))
	for k, val := range m {
		claims[k] = val
	}
	return claims, nil
}
