// Package authgin adapts the validator to gin.
package authgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authhttp "github.com/open-rails/bearerkit/adapters/http"
	"github.com/open-rails/bearerkit/core"
	"github.com/open-rails/bearerkit/validator"
)

// principalCtxKey is the gin context key the principal is stored under.
const principalCtxKey = "bearerkit.principal"

// AuthRequired validates the bearer token and aborts with 401 when the
// request carries no credential or an invalid one.
func AuthRequired(v *validator.Validator) gin.HandlerFunc {
	return middleware(v, false)
}

// AuthOptional validates the bearer token when one is present. Anonymous
// requests pass through without a principal; invalid tokens still abort.
func AuthOptional(v *validator.Validator) gin.HandlerFunc {
	return middleware(v, true)
}

func middleware(v *validator.Validator, allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := v.Validate(c.Request.Context(), c.Request)
		if err != nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		switch res.Outcome {
		case core.OutcomeSucceeded:
			c.Set(principalCtxKey, res.Principal)
			c.Next()
		case core.OutcomeNoCredential:
			if allowAnonymous {
				c.Next()
				return
			}
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		default:
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		}
	}
}

// PrincipalFrom returns the principal set by AuthRequired/AuthOptional.
func PrincipalFrom(c *gin.Context) (*core.Principal, bool) {
	v, ok := c.Get(principalCtxKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*core.Principal)
	return p, ok
}

// RequireScope aborts with 403 unless the principal carries the scope.
// Must run after AuthRequired.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok || !p.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope"})
			return
		}
		c.Next()
	}
}

// Extractor returns the shared bearer extractor so gin hosts can build their
// validator with the same extraction the middleware uses.
func Extractor() core.Extractor {
	return authhttp.BearerExtractor()
}
