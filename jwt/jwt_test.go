package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func signerRoundTrip(t *testing.T, s *RSASigner, pub *rsa.PublicKey) {
	t.Helper()
	token, err := s.Sign(context.Background(), BaseClaims("https://issuer", "alice", "test-app", time.Hour))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return pub, nil })
	if err != nil || !parsed.Valid {
		t.Fatalf("parse signed token: %v", err)
	}
	if kid, _ := parsed.Header["kid"].(string); kid != s.KID() {
		t.Errorf("kid header: got %q, want %q", kid, s.KID())
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if sub, _ := claims["sub"].(string); sub != "alice" {
		t.Errorf("sub: got %q", sub)
	}
}

func TestNewRSASignerFromPEMPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	s, err := NewRSASignerFromPEM("pem-key-1", pemBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	signerRoundTrip(t, s, &key.PublicKey)
}

func TestNewRSASignerFromPEMPKCS8(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	s, err := NewRSASignerFromPEM("pem-key-2", pemBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	signerRoundTrip(t, s, &key.PublicKey)
}

func TestNewRSASignerFromPEMInvalid(t *testing.T) {
	if _, err := NewRSASignerFromPEM("k", nil); err == nil {
		t.Error("expected error for empty pem")
	}
	if _, err := NewRSASignerFromPEM("k", []byte("not pem")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestJWKSFromPublicKeys(t *testing.T) {
	k1, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	ks := JWKSFromPublicKeys(map[string]*rsa.PublicKey{
		"key-1": &k1.PublicKey,
		"key-2": &k2.PublicKey,
	}, "RS256")

	if len(ks.Keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(ks.Keys))
	}
	seen := map[string]bool{}
	for _, k := range ks.Keys {
		seen[k.Kid] = true
		if k.Kty != "RSA" || k.Alg != "RS256" || k.N == "" || k.E == "" {
			t.Errorf("key %s: incomplete JWK %+v", k.Kid, k)
		}
	}
	if !seen["key-1"] || !seen["key-2"] {
		t.Errorf("missing kids: %v", seen)
	}
}
