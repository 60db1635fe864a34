package core

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestPrincipalScopes(t *testing.T) {
	p := &Principal{Subject: "alice", Claims: jwt.MapClaims{"scope": "read  write admin"}}

	scopes := p.Scopes()
	if len(scopes) != 3 {
		t.Fatalf("scopes: got %v", scopes)
	}
	if !p.HasScope("write") {
		t.Error("expected scope write")
	}
	if p.HasScope("delete") {
		t.Error("unexpected scope delete")
	}
}

func TestPrincipalScopesAbsent(t *testing.T) {
	p := &Principal{Subject: "alice", Claims: jwt.MapClaims{}}
	if got := p.Scopes(); got != nil {
		t.Errorf("scopes: got %v, want nil", got)
	}
	if p.HasScope("read") {
		t.Error("unexpected scope on empty claim set")
	}
}

func TestPrincipalClaim(t *testing.T) {
	p := &Principal{Claims: jwt.MapClaims{"email": "alice@example.com", "count": 3}}
	if v, ok := p.Claim("email"); !ok || v != "alice@example.com" {
		t.Errorf("email: got (%q, %v)", v, ok)
	}
	if _, ok := p.Claim("count"); ok {
		t.Error("non-string claim should not be returned")
	}
	if _, ok := p.Claim("missing"); ok {
		t.Error("missing claim should not be returned")
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{Address: "https://auth.example.com"}.WithDefaults()
	if o.ValidationType != ValidationDirect {
		t.Errorf("validation type: got %v", o.ValidationType)
	}
	if o.RetryAttempts != 4 {
		t.Errorf("retry attempts: got %d", o.RetryAttempts)
	}
	if o.BackoffBase != time.Second {
		t.Errorf("backoff base: got %v", o.BackoffBase)
	}
	if o.HTTPTimeout != 10*time.Second {
		t.Errorf("http timeout: got %v", o.HTTPTimeout)
	}
	if o.CacheTTL != 15*time.Minute {
		t.Errorf("cache ttl: got %v", o.CacheTTL)
	}
}

func TestOptionsWithDefaultsKeepsExplicitValues(t *testing.T) {
	o := Options{
		ValidationType: ValidationIntrospection,
		RetryAttempts:  2,
		BackoffBase:    time.Millisecond,
	}.WithDefaults()
	if o.ValidationType != ValidationIntrospection || o.RetryAttempts != 2 || o.BackoffBase != time.Millisecond {
		t.Errorf("explicit values overridden: %+v", o)
	}
}
