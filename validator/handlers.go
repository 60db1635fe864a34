package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/open-rails/bearerkit/core"
	oidckit "github.com/open-rails/bearerkit/oidc"
	"github.com/open-rails/bearerkit/pipeline"
)

// builtinHandlers is the default handler table. Order within a stage follows
// ascending priority; the filters decide which validation path runs.
func (v *Validator) builtinHandlers() []pipeline.Descriptor {
	return []pipeline.Descriptor{
		{
			Name:   "extract-token",
			Stage:  pipeline.StageExtraction,
			Handle: v.handleExtract,
		},
		{
			Name:   "validate-local",
			Stage:  pipeline.StageValidation,
			Filter: pipeline.All(pipeline.RequireTokenExtracted, pipeline.RequireLocalValidation),
			Handle: v.handleLocalValidation,
		},
		{
			Name:   "validate-introspection",
			Stage:  pipeline.StageValidation,
			Filter: pipeline.All(pipeline.RequireTokenExtracted, pipeline.RequireIntrospectionValidation),
			Handle: v.handleIntrospection,
		},
		{
			Name:   "build-principal",
			Stage:  pipeline.StagePrincipalConstruction,
			Filter: pipeline.RequireTokenValidated,
			Handle: v.handleBuildPrincipal,
		},
		{
			Name:     "check-authorization-entry",
			Stage:    pipeline.StageEntryValidation,
			Priority: 0,
			Filter:   pipeline.All(pipeline.RequireTokenValidated, pipeline.RequireAuthorizationEntryValidationEnabled),
			Handle:   v.handleAuthorizationEntry,
		},
		{
			Name:     "check-token-entry",
			Stage:    pipeline.StageEntryValidation,
			Priority: 1,
			Filter:   pipeline.All(pipeline.RequireTokenValidated, pipeline.RequireTokenEntryValidationEnabled),
			Handle:   v.handleTokenEntry,
		},
	}
}

// handleExtract pulls the bearer token from the request. No token is the
// anonymous outcome, not a failure.
func (v *Validator) handleExtract(ctx context.Context, pc *pipeline.Context) error {
	if pc.RawToken != "" {
		return nil
	}
	token, ok := v.extractor.Extract(ctx, pc.Request)
	if !ok || token == "" {
		pc.NoCredential()
		return nil
	}
	pc.RawToken = token
	return nil
}

// handleLocalValidation verifies the token signature and claims against the
// cached signing keys. An unknown key id forces exactly one cache refresh
// before the token is rejected, tolerating key rotation.
func (v *Validator) handleLocalValidation(ctx context.Context, pc *pipeline.Context) error {
	md, err := v.cache.GetOrFetch(ctx, v.opts.Address)
	if err != nil {
		if isCancellation(err) {
			return err
		}
		if v.pinnedMD == nil {
			pc.Reject(err)
			return nil
		}
		// Degraded mode: validate against operator-pinned keys.
		v.logger.WithField("run_id", pc.RunID).WithError(err).
			Warn("metadata fetch failed, validating against pinned keys")
		md = v.pinnedMD
	}

	claims, err := v.verifier.Verify(ctx, pc.RawToken, md)
	if errors.Is(err, oidckit.ErrKeyNotFound) {
		md, err = v.cache.Refresh(ctx, v.opts.Address)
		if err != nil {
			if isCancellation(err) {
				return err
			}
			pc.Reject(err)
			return nil
		}
		claims, err = v.verifier.Verify(ctx, pc.RawToken, md)
	}
	if err != nil {
		if isCancellation(err) {
			return err
		}
		pc.Reject(fmt.Errorf("%w: %v", core.ErrTokenInvalid, err))
		return nil
	}

	pc.Claims = claims
	pc.TokenValidated = true
	return nil
}

// handleIntrospection asks the authorization server whether the token is
// active. An inactive response and a network failure reject identically so
// callers cannot distinguish revocation from outage.
func (v *Validator) handleIntrospection(ctx context.Context, pc *pipeline.Context) error {
	md, err := v.cache.GetOrFetch(ctx, v.opts.Address)
	if err != nil {
		if isCancellation(err) {
			return err
		}
		pc.Reject(err)
		return nil
	}

	claims, err := v.introspector.Introspect(ctx, pc.RawToken, md)
	if err != nil {
		if isCancellation(err) {
			return err
		}
		pc.Reject(fmt.Errorf("%w: %v", core.ErrTokenInvalid, err))
		return nil
	}
	if err := v.checkIntrospectedClaims(claims); err != nil {
		pc.Reject(fmt.Errorf("%w: %v", core.ErrTokenInvalid, err))
		return nil
	}

	pc.Claims = claims
	pc.TokenValidated = true
	return nil
}

// checkIntrospectedClaims applies the audience and expiry checks the server's
// active flag does not cover.
func (v *Validator) checkIntrospectedClaims(claims gojwt.MapClaims) error {
	if v.opts.Audience != "" {
		audiences, err := claims.GetAudience()
		if err != nil {
			return errors.New("introspection response has malformed audience")
		}
		if len(audiences) > 0 {
			found := false
			for _, aud := range audiences {
				if aud == v.opts.Audience {
					found = true
					break
				}
			}
			if !found {
				return errors.New("audience mismatch")
			}
		}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return errors.New("introspection response has malformed expiry")
	}
	if exp != nil && exp.Before(time.Now().Add(-v.opts.Skew)) {
		return errors.New("token expired")
	}
	return nil
}

// handleBuildPrincipal maps validated claims into the principal.
func (*Validator) handleBuildPrincipal(_ context.Context, pc *pipeline.Context) error {
	subject, _ := pc.Claims["sub"].(string)
	pc.Principal = &core.Principal{Subject: subject, Claims: pc.Claims}
	return nil
}

// handleAuthorizationEntry confirms the authorization record backing the
// token still exists and is valid. Fails closed: a missing claim, store
// error, or revoked record all reject.
func (v *Validator) handleAuthorizationEntry(ctx context.Context, pc *pipeline.Context) error {
	if pc.Store == nil {
		pc.Reject(fmt.Errorf("%w: no store configured", core.ErrStoreUnavailable))
		return nil
	}
	id, _ := pc.Claims[core.ClaimAuthorizationID].(string)
	if id == "" {
		pc.Reject(fmt.Errorf("%w: token carries no authorization id", core.ErrEntryRevoked))
		return nil
	}
	entry, found, err := pc.Store.GetAuthorization(ctx, id)
	if err != nil {
		if isCancellation(err) {
			return err
		}
		pc.Reject(fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
		return nil
	}
	if !found || entry.Status != core.EntryStatusValid {
		pc.Reject(fmt.Errorf("%w: authorization %s", core.ErrEntryRevoked, id))
		return nil
	}
	return nil
}

// handleTokenEntry confirms the token record itself has not been revoked.
func (v *Validator) handleTokenEntry(ctx context.Context, pc *pipeline.Context) error {
	if pc.Store == nil {
		pc.Reject(fmt.Errorf("%w: no store configured", core.ErrStoreUnavailable))
		return nil
	}
	id, _ := pc.Claims[core.ClaimTokenID].(string)
	if id == "" {
		pc.Reject(fmt.Errorf("%w: token carries no token id", core.ErrEntryRevoked))
		return nil
	}
	entry, found, err := pc.Store.GetToken(ctx, id)
	if err != nil {
		if isCancellation(err) {
			return err
		}
		pc.Reject(fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err))
		return nil
	}
	if !found || entry.Status != core.EntryStatusValid {
		pc.Reject(fmt.Errorf("%w: token %s", core.ErrEntryRevoked, id))
		return nil
	}
	return nil
}
