package oidckit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/open-rails/bearerkit/resilience"
)

// ErrTokenInactive is returned when the authorization server reports the
// introspected token as not active.
var ErrTokenInactive = errors.New("oidc: token not active")

// Introspector calls the authorization server's introspection endpoint to ask
// whether a token is currently active (RFC 7662).
type Introspector struct {
	clientID     string
	clientSecret string
	creds        *clientcredentials.Config
	client       *http.Client
	policy       resilience.Policy
	logger       logrus.FieldLogger
}

// IntrospectorOpt configures an Introspector.
type IntrospectorOpt func(*Introspector)

// WithClientSecret authenticates introspection calls with HTTP basic auth.
func WithClientSecret(clientID, clientSecret string) IntrospectorOpt {
	return func(i *Introspector) {
		i.clientID = clientID
		i.clientSecret = clientSecret
	}
}

// WithClientCredentials obtains a bearer token for introspection calls via
// the client-credentials grant instead of basic auth.
func WithClientCredentials(cfg *clientcredentials.Config) IntrospectorOpt {
	return func(i *Introspector) { i.creds = cfg }
}

// WithIntrospectionHTTPClient sets the HTTP client for introspection calls.
func WithIntrospectionHTTPClient(c *http.Client) IntrospectorOpt {
	return func(i *Introspector) { i.client = c }
}

// WithIntrospectionPolicy overrides the retry policy.
func WithIntrospectionPolicy(p resilience.Policy) IntrospectorOpt {
	return func(i *Introspector) { i.policy = p }
}

// WithIntrospectionLogger sets the logger.
func WithIntrospectionLogger(l logrus.FieldLogger) IntrospectorOpt {
	return func(i *Introspector) { i.logger = l }
}

// NewIntrospector builds an introspection client.
func NewIntrospector(opts ...IntrospectorOpt) *Introspector {
	i := &Introspector{
		client: http.DefaultClient,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Introspect posts the token to md's introspection endpoint and returns the
// claims the server reported for it. An inactive token yields
// ErrTokenInactive.
func (i *Introspector) Introspect(ctx context.Context, rawToken string, md *ProviderMetadata) (gojwt.MapClaims, error) {
	if md == nil || md.IntrospectionEndpoint == "" {
		return nil, errors.New("oidc: no introspection endpoint available")
	}

	body, err := resilience.PostForm(ctx, i.policy, i.client, func(ctx context.Context) (*http.Request, error) {
		form := url.Values{"token": {rawToken}}
		form.Set("token_type_hint", "access_token")
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, md.IntrospectionEndpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		if err := i.authorize(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("oidc: introspection call failed: %w", err)
	}

	return parseIntrospectionResponse(body)
}

// authorize attaches client credentials to the introspection request.
func (i *Introspector) authorize(ctx context.Context, req *http.Request) error {
	if i.creds != nil {
		tok, err := i.creds.Token(ctx)
		if err != nil {
			return fmt.Errorf("oidc: introspection token source: %w", err)
		}
		tok.SetAuthHeader(req)
		return nil
	}
	if i.clientID != "" && i.clientSecret != "" {
		req.SetBasicAuth(i.clientID, i.clientSecret)
	}
	return nil
}

func parseIntrospectionResponse(body []byte) (gojwt.MapClaims, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("oidc: malformed introspection response: %w", err)
	}
	active, ok := fields["active"].(bool)
	if !ok {
		return nil, errors.New("oidc: introspection response missing active flag")
	}
	if !active {
		return nil, ErrTokenInactive
	}

	claims := make(gojwt.MapClaims, len(fields))
	for k, v := range fields {
		if k == "active" {
			continue
		}
		if s, isStr := v.(string); isStr {
			claims[k] = strings.TrimSpace(s)
			continue
		}
		claims[k] = v
	}
	return claims, nil
}
