package oidckit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/bearerkit/resilience"
)

// ErrDiscoveryUnavailable is returned when the authorization server could not
// be reached after the retry policy was exhausted.
var ErrDiscoveryUnavailable = errors.New("oidc: authorization server unavailable")

// DiscoveryError reports a non-transient problem with the authorization
// server address or its published configuration. It is fatal and not retried.
type DiscoveryError struct {
	Address string
	Reason  string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oidc: discovery failed for %s: %s: %v", e.Address, e.Reason, e.Err)
	}
	return fmt.Sprintf("oidc: discovery failed for %s: %s", e.Address, e.Reason)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

type discoveryDoc struct {
	Issuer                string   `json:"issuer"`
	AuthorizationEndpoint string   `json:"authorization_endpoint"`
	TokenEndpoint         string   `json:"token_endpoint"`
	IntrospectionEndpoint string   `json:"introspection_endpoint"`
	JWKSURI               string   `json:"jwks_uri"`
	Algorithms            []string `json:"id_token_signing_alg_values_supported"`
}

// Retriever fetches provider metadata and signing keys from an authorization
// server. All network calls go through the resilience policy. Fetch is
// idempotent: repeated calls with no server-side change yield equivalent
// metadata.
type Retriever struct {
	client *http.Client
	policy resilience.Policy
	logger logrus.FieldLogger
}

// RetrieverOpt configures a Retriever.
type RetrieverOpt func(*Retriever)

// WithHTTPClient sets the HTTP client used for discovery and JWKS calls.
func WithHTTPClient(c *http.Client) RetrieverOpt {
	return func(r *Retriever) { r.client = c }
}

// WithPolicy overrides the retry policy.
func WithPolicy(p resilience.Policy) RetrieverOpt {
	return func(r *Retriever) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) RetrieverOpt {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever builds a retriever with default policy and client.
func NewRetriever(opts ...RetrieverOpt) *Retriever {
	r := &Retriever{
		client: http.DefaultClient,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch retrieves the discovery document and JWKS for the authorization
// server at address and returns them as a single immutable metadata value.
func (r *Retriever) Fetch(ctx context.Context, address string) (*ProviderMetadata, error) {
	origin, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}

	wellKnown := origin + "/.well-known/openid-configuration"
	body, err := resilience.GetJSON(ctx, r.policy, r.client, wellKnown)
	if err != nil {
		return nil, classifyFetchErr(address, "discovery document", err)
	}

	var doc discoveryDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &DiscoveryError{Address: address, Reason: "malformed discovery document", Err: err}
	}
	if doc.JWKSURI == "" {
		return nil, &DiscoveryError{Address: address, Reason: "discovery document missing jwks_uri"}
	}

	keys, err := r.fetchKeys(ctx, address, doc.JWKSURI)
	if err != nil {
		return nil, err
	}

	md := &ProviderMetadata{
		Issuer:                doc.Issuer,
		AuthorizationEndpoint: doc.AuthorizationEndpoint,
		TokenEndpoint:         doc.TokenEndpoint,
		IntrospectionEndpoint: doc.IntrospectionEndpoint,
		JWKSURI:               doc.JWKSURI,
		Algorithms:            doc.Algorithms,
		SigningKeys:           keys,
	}
	if md.Issuer == "" {
		md.Issuer = origin
	}
	r.logger.WithFields(logrus.Fields{
		"address": address,
		"keys":    keys.Len(),
	}).Debug("provider metadata fetched")
	return md, nil
}

func (r *Retriever) fetchKeys(ctx context.Context, address, jwksURI string) (jwk.Set, error) {
	body, err := resilience.GetJSON(ctx, r.policy, r.client, jwksURI)
	if err != nil {
		return nil, classifyFetchErr(address, "jwks", err)
	}
	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, &DiscoveryError{Address: address, Reason: "malformed jwks", Err: err}
	}
	seen := make(map[string]struct{}, keys.Len())
	for i := 0; i < keys.Len(); i++ {
		key, _ := keys.Key(i)
		kid := key.KeyID()
		if _, dup := seen[kid]; dup {
			return nil, &DiscoveryError{Address: address, Reason: "duplicate key id in jwks: " + kid}
		}
		seen[kid] = struct{}{}
	}
	return keys, nil
}

// normalizeAddress checks that address is an absolute http(s) origin and
// strips any trailing slash.
func normalizeAddress(address string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(address), "/")
	if trimmed == "" {
		return "", &DiscoveryError{Address: address, Reason: "address is empty"}
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", &DiscoveryError{Address: address, Reason: "address is not a valid URL", Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &DiscoveryError{Address: address, Reason: "address must be an absolute http(s) origin"}
	}
	return trimmed, nil
}

// classifyFetchErr maps a resilience-layer failure onto the error taxonomy:
// cancellation passes through, permanent status errors become DiscoveryError,
// exhausted transient failures become ErrDiscoveryUnavailable.
func classifyFetchErr(address, what string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) && statusErr.Code != http.StatusNotFound {
		return &DiscoveryError{Address: address, Reason: "cannot retrieve " + what, Err: err}
	}
	return fmt.Errorf("%w: %s: %v", ErrDiscoveryUnavailable, what, err)
}
