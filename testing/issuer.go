// Package testing provides utilities for testing applications that use
// bearerkit. It provides a mock authorization server that serves discovery,
// JWKS and introspection endpoints and can sign tokens, enabling integration
// tests without a real provider.
//
// Example usage:
//
//	srv := testing.NewAuthServer()
//	defer srv.Close()
//
//	opts := core.Options{Address: srv.URL(), Audience: srv.Audience()}
//	token := srv.CreateToken("user-123")
package testing

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	jwtkit "github.com/open-rails/bearerkit/jwt"
)

// AuthServer is a complete mock authorization server. It serves the OIDC
// discovery document, a JWKS, and an RFC 7662 introspection endpoint, and
// mints tokens that validate against its own keys.
type AuthServer struct {
	server   *httptest.Server
	audience string

	mu            sync.Mutex
	signer        *jwtkit.RSASigner
	served        map[string]*jwtkit.RSASigner // kid -> signer currently in the JWKS
	introspection map[string]map[string]any    // token -> response body
	introspectFn  func(token string) map[string]any
	failures      int
	failStatus    int
	hits          map[string]int
}

// NewAuthServer creates a mock server with audience "test-app".
// Call Close when done.
func NewAuthServer() *AuthServer {
	return NewAuthServerWithAudience("test-app")
}

// NewAuthServerWithAudience creates a mock server with a specific audience.
func NewAuthServerWithAudience(audience string) *AuthServer {
	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		panic("failed to create RSA signer: " + err.Error())
	}

	s := &AuthServer{
		audience:      audience,
		signer:        signer,
		served:        map[string]*jwtkit.RSASigner{signer.KID(): signer},
		introspection: make(map[string]map[string]any),
		failStatus:    http.StatusServiceUnavailable,
		hits:          make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("/.well-known/jwks.json", s.handleJWKS)
	mux.HandleFunc("/introspect", s.handleIntrospect)

	s.server = httptest.NewServer(s.faultWrapper(mux))
	return s
}

// URL returns the server's base URL; use it as the authorization-server
// address in Options.
func (s *AuthServer) URL() string { return s.server.URL }

// Audience returns the audience the server mints tokens for.
func (s *AuthServer) Audience() string { return s.audience }

// Close shuts down the server.
func (s *AuthServer) Close() { s.server.Close() }

// FailNext makes the next n HTTP responses fail with 503 regardless of path,
// for exercising retry behavior.
func (s *AuthServer) FailNext(n int) { s.FailNextWith(http.StatusServiceUnavailable, n) }

// FailNextWith makes the next n HTTP responses fail with the given status.
func (s *AuthServer) FailNextWith(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failures = n
}

// Hits returns how many requests reached the given path (faulted responses
// included).
func (s *AuthServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// PublicKeys returns the currently served verification keys keyed by key id,
// e.g. for pinning them into a validator.
func (s *AuthServer) PublicKeys() map[string]*rsa.PublicKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*rsa.PublicKey, len(s.served))
	for kid, signer := range s.served {
		out[kid] = signer.PublicKey()
	}
	return out
}

// RotateKeys replaces the signing key with a fresh one. The JWKS serves only
// the new key afterwards, so tokens minted after rotation carry a key id a
// stale cache will not know.
func (s *AuthServer) RotateKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kid := "test-key-" + time.Now().Format("150405.000000000")
	signer, err := jwtkit.NewRSASigner(2048, kid)
	if err != nil {
		panic("failed to rotate RSA signer: " + err.Error())
	}
	s.signer = signer
	s.served = map[string]*jwtkit.RSASigner{kid: signer}
}

// SetIntrospection fixes the introspection response for one token. Without
// an entry (and without an IntrospectFunc) tokens introspect as inactive.
func (s *AuthServer) SetIntrospection(token string, response map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.introspection[token] = response
}

// SetIntrospectFunc computes introspection responses dynamically.
func (s *AuthServer) SetIntrospectFunc(fn func(token string) map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.introspectFn = fn
}

// faultWrapper counts hits and serves injected failures before the real mux.
func (s *AuthServer) faultWrapper(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		if s.failures > 0 {
			s.failures--
			status := s.failStatus
			s.mu.Unlock()
			http.Error(w, "injected failure", status)
			return
		}
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *AuthServer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"issuer":                 s.URL(),
		"authorization_endpoint": s.URL() + "/authorize",
		"token_endpoint":         s.URL() + "/token",
		"introspection_endpoint": s.URL() + "/introspect",
		"jwks_uri":               s.URL() + "/.well-known/jwks.json",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *AuthServer) handleJWKS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	alg := s.signer.Algorithm()
	s.mu.Unlock()
	jwtkit.ServeJWKS(w, r, jwtkit.JWKSFromPublicKeys(s.PublicKeys(), alg))
}

func (s *AuthServer) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	token := r.PostForm.Get("token")

	s.mu.Lock()
	resp, ok := s.introspection[token]
	fn := s.introspectFn
	s.mu.Unlock()

	if !ok && fn != nil {
		resp = fn(token)
		ok = resp != nil
	}
	if !ok {
		resp = map[string]any{"active": false}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// CreateToken creates a signed token for the subject, valid one hour.
func (s *AuthServer) CreateToken(subject string) string {
	return s.CreateTokenWithClaims(subject, nil)
}

// CreateTokenWithClaims merges extra claims over the standard set
// (iss, sub, aud, exp, iat).
func (s *AuthServer) CreateTokenWithClaims(subject string, extraClaims map[string]any) string {
	claims := jwtkit.BaseClaims(s.URL(), subject, s.audience, time.Hour)
	for k, v := range extraClaims {
		claims[k] = v
	}

	s.mu.Lock()
	signer := s.signer
	s.mu.Unlock()

	token, err := signer.Sign(context.Background(), jwt.MapClaims(claims))
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}

// CreateExpiredToken creates a token that expired an hour ago.
func (s *AuthServer) CreateExpiredToken(subject string) string {
	return s.CreateTokenWithClaims(subject, map[string]any{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
}

// CreateTokenSignedElsewhere creates a token signed by a key the server
// never serves, for exercising unknown-key rejection.
func (s *AuthServer) CreateTokenSignedElsewhere(subject string) string {
	rogue, err := jwtkit.NewRSASigner(2048, "rogue-key")
	if err != nil {
		panic("failed to create rogue signer: " + err.Error())
	}
	claims := jwtkit.BaseClaims(s.URL(), subject, s.audience, time.Hour)
	token, err := rogue.Sign(context.Background(), jwt.MapClaims(claims))
	if err != nil {
		panic("failed to sign token: " + err.Error())
	}
	return token
}
