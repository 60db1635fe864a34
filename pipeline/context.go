// Package pipeline implements the ordered, filtered handler dispatch that
// drives token validation: a table of tagged handler records selected per
// stage and invoked in priority order against a per-request context.
package pipeline

import (
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/open-rails/bearerkit/core"
)

// Context is the per-request record threaded through the pipeline. It is
// owned by exactly one validation run and must never be shared across
// requests. Fields are populated stage by stage: RawToken by extraction,
// Claims by validation, Principal by principal construction.
type Context struct {
	// RunID identifies this validation run in logs.
	RunID uuid.UUID

	// Request is the transport-specific request object handed to the
	// extraction collaborator.
	Request any

	// Options is the process-wide configuration consulted by filters.
	Options core.Options

	// Store is the entry-validation collaborator, if configured.
	Store core.Store

	// RawToken is the bearer credential pulled from the request.
	RawToken string

	// TokenValidated is set once the token has been structurally and
	// cryptographically accepted (or confirmed active by introspection).
	// Distinct from extraction: a token can be extracted but not yet
	// validated.
	TokenValidated bool

	// Claims is the validated claim set.
	Claims gojwt.MapClaims

	// Principal is the authenticated caller, once constructed.
	Principal *core.Principal

	outcome core.Outcome
	reason  error
}

// NewContext builds a context for one validation run.
func NewContext(req any, opts core.Options, store core.Store) *Context {
	return &Context{
		RunID:   uuid.New(),
		Request: req,
		Options: opts,
		Store:   store,
	}
}

// Terminal reports whether a terminal outcome has been set. Once terminal,
// the dispatcher short-circuits remaining handlers and stages.
func (c *Context) Terminal() bool { return c.outcome != core.OutcomePending }

// Outcome returns the terminal outcome, or core.OutcomePending.
func (c *Context) Outcome() core.Outcome { return c.outcome }

// Reason returns the internally-retained failure reason, if any.
func (c *Context) Reason() error { return c.reason }

// Succeed marks the run as succeeded. Final: later Fail/Succeed calls on a
// terminal context are ignored.
func (c *Context) Succeed() {
	if c.Terminal() {
		return
	}
	c.outcome = core.OutcomeSucceeded
}

// Reject marks the run as failed with an internal reason.
func (c *Context) Reject(reason error) {
	if c.Terminal() {
		return
	}
	c.outcome = core.OutcomeRejected
	c.reason = reason
}

// NoCredential marks the run as anonymous: no token was presented, which is
// distinct from an invalid token.
func (c *Context) NoCredential() {
	if c.Terminal() {
		return
	}
	c.outcome = core.OutcomeNoCredential
	c.reason = core.ErrNoToken
}
