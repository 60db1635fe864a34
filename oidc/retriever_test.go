package oidckit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtkit "github.com/open-rails/bearerkit/jwt"
	"github.com/open-rails/bearerkit/resilience"
	bktesting "github.com/open-rails/bearerkit/testing"
)

func fastRetriever() *Retriever {
	return NewRetriever(WithPolicy(resilience.Policy{Attempts: 2, Base: time.Millisecond}))
}

func TestFetch(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()

	md, err := fastRetriever().Fetch(context.Background(), srv.URL())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Issuer != srv.URL() {
		t.Errorf("issuer: got %q, want %q", md.Issuer, srv.URL())
	}
	if md.IntrospectionEndpoint == "" {
		t.Error("missing introspection endpoint")
	}
	if md.SigningKeys == nil || md.SigningKeys.Len() != 1 {
		t.Fatalf("expected 1 signing key, got %v", md.SigningKeys)
	}
	if _, ok := md.KeyByID("test-key-1"); !ok {
		t.Error("expected key test-key-1 in key set")
	}
}

func TestFetchTrimsTrailingSlash(t *testing.T) {
	srv := bktesting.NewAuthServer()
	defer srv.Close()

	md, err := fastRetriever().Fetch(context.Background(), srv.URL()+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Issuer != srv.URL() {
		t.Errorf("issuer: got %q, want %q", md.Issuer, srv.URL())
	}
}

func TestFetchBadAddress(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not a url",
		"ftp://example.com",
		"/relative/path",
	}
	r := fastRetriever()
	for _, address := range cases {
		_, err := r.Fetch(context.Background(), address)
		var discErr *DiscoveryError
		if !errors.As(err, &discErr) {
			t.Errorf("address %q: expected DiscoveryError, got: %v", address, err)
		}
	}
}

func TestFetchMissingJWKSURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"issuer": "x"})
	}))
	defer srv.Close()

	_, err := fastRetriever().Fetch(context.Background(), srv.URL)
	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		t.Fatalf("expected DiscoveryError, got: %v", err)
	}
}

func TestFetchMalformedDiscovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := fastRetriever().Fetch(context.Background(), srv.URL)
	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		t.Fatalf("expected DiscoveryError, got: %v", err)
	}
}

func TestFetchDuplicateKeyID(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	dup := jwtkit.RSAPublicToJWK(&key.PublicKey, "dup-key", "RS256")
	ks := jwtkit.JWKS{Keys: []jwtkit.JWK{dup, dup}}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/jwks" {
			json.NewEncoder(w).Encode(ks)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":   srv.URL,
			"jwks_uri": srv.URL + "/jwks",
		})
	}))
	defer srv.Close()

	_, err = fastRetriever().Fetch(context.Background(), srv.URL)
	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		t.Fatalf("expected DiscoveryError for duplicate kid, got: %v", err)
	}
}

func TestFetchServerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := fastRetriever().Fetch(context.Background(), url)
	if !errors.Is(err, ErrDiscoveryUnavailable) {
		t.Fatalf("expected ErrDiscoveryUnavailable, got: %v", err)
	}
}

func TestFetchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	srv := bktesting.NewAuthServer()
	defer srv.Close()

	_, err := fastRetriever().Fetch(ctx, srv.URL())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}
