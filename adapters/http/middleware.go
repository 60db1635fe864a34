// Package authhttp adapts the validator to net/http: bearer extraction from
// the Authorization header and a middleware that gates handlers behind a
// validated principal.
package authhttp

import (
	"context"
	"net/http"
	"strings"

	"github.com/open-rails/bearerkit/core"
	"github.com/open-rails/bearerkit/validator"
)

// principalKey is the request-context key for the authenticated principal.
type principalKey struct{}

// BearerExtractor is the request-extraction collaborator for *http.Request:
// it pulls the token out of an "Authorization: Bearer <token>" header.
func BearerExtractor() core.Extractor {
	return core.ExtractorFunc(func(_ context.Context, req any) (string, bool) {
		r, ok := req.(*http.Request)
		if !ok {
			return "", false
		}
		return BearerFromHeader(r.Header.Get("Authorization"))
	})
}

// BearerFromHeader extracts the token from an Authorization header value.
func BearerFromHeader(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// MiddlewareConfig tunes the middleware.
type MiddlewareConfig struct {
	// Realm is advertised in WWW-Authenticate challenges.
	Realm string
	// AllowAnonymous lets requests without any credential through with no
	// principal in context. Invalid credentials are still rejected.
	AllowAnonymous bool
}

// Middleware validates the bearer token on each request. Rejections get a
// 401 with an RFC 6750 WWW-Authenticate challenge; the rejection reason is
// never included in the response.
func Middleware(v *validator.Validator, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := v.Validate(r.Context(), r)
			if err != nil {
				// Pipeline fault or cancellation, not a verdict on
				// the credential.
				http.Error(w, "authorization unavailable", http.StatusServiceUnavailable)
				return
			}

			switch res.Outcome {
			case core.OutcomeSucceeded:
				ctx := context.WithValue(r.Context(), principalKey{}, res.Principal)
				next.ServeHTTP(w, r.WithContext(ctx))
			case core.OutcomeNoCredential:
				if cfg.AllowAnonymous {
					next.ServeHTTP(w, r)
					return
				}
				w.Header().Set("WWW-Authenticate", challenge(cfg.Realm, false))
				http.Error(w, "authorization required", http.StatusUnauthorized)
			default:
				w.Header().Set("WWW-Authenticate", challenge(cfg.Realm, true))
				http.Error(w, "invalid token", http.StatusUnauthorized)
			}
		})
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*core.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*core.Principal)
	return p, ok
}

// challenge builds a WWW-Authenticate value per RFC 6750. Only the generic
// invalid_token code is ever exposed; internal reasons stay in the logs.
func challenge(realm string, invalid bool) string {
	var parts []string
	if realm != "" {
		parts = append(parts, `realm="`+escapeQuotes(realm)+`"`)
	}
	if invalid {
		parts = append(parts, `error="invalid_token"`)
	}
	if len(parts) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(parts, ", ")
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
