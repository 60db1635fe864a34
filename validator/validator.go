// Package validator is the top-level entry point for bearer-token
// validation: it drives the handler pipeline through its stages and maps
// every failure path to one of two caller-visible outcomes.
package validator

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/bearerkit/cache"
	"github.com/open-rails/bearerkit/core"
	oidckit "github.com/open-rails/bearerkit/oidc"
	"github.com/open-rails/bearerkit/pipeline"
	"github.com/open-rails/bearerkit/resilience"
)

// Result is the terminal outcome of a validation run. Principal is non-nil
// only when Outcome is core.OutcomeSucceeded. Failure reasons are logged
// internally, never carried on the result.
type Result struct {
	Outcome   core.Outcome
	Principal *core.Principal
}

// Validator validates bearer credentials against one authorization server.
// Safe for concurrent use; each run gets its own pipeline context.
type Validator struct {
	opts         core.Options
	cache        *cache.Cache
	verifier     *oidckit.AccessTokenVerifier
	introspector *oidckit.Introspector
	extractor    core.Extractor
	store        core.Store
	registry     *pipeline.Registry
	logger       logrus.FieldLogger
	events       core.AuthEventLogger
	extra        []pipeline.Descriptor

	pinnedKeys map[string]*rsa.PublicKey
	pinnedMD   *oidckit.ProviderMetadata
}

// Opt configures a Validator.
type Opt func(*Validator)

// WithStore wires the entry-validation store collaborator.
func WithStore(s core.Store) Opt {
	return func(v *Validator) { v.store = s }
}

// WithExtractor wires the request-extraction collaborator. The default
// treats the request object as the raw token string.
func WithExtractor(e core.Extractor) Opt {
	return func(v *Validator) { v.extractor = e }
}

// WithCache injects a pre-built metadata cache, e.g. one shared between
// validators or configured with cache.WithServeStale.
func WithCache(c *cache.Cache) Opt {
	return func(v *Validator) { v.cache = c }
}

// WithIntrospector injects a pre-built introspection client.
func WithIntrospector(i *oidckit.Introspector) Opt {
	return func(v *Validator) { v.introspector = i }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Opt {
	return func(v *Validator) { v.logger = l }
}

// WithEventLogger wires a best-effort audit sink for terminal outcomes.
func WithEventLogger(e core.AuthEventLogger) Opt {
	return func(v *Validator) { v.events = e }
}

// WithHandlers registers additional pipeline handlers alongside the built-in
// ones. Priority and filter decide when they run.
func WithHandlers(descs ...pipeline.Descriptor) Opt {
	return func(v *Validator) { v.extra = append(v.extra, descs...) }
}

// WithPinnedKeys pins RSA public keys (kid -> key) for degraded local
// validation when the provider's metadata cannot be fetched at all.
func WithPinnedKeys(keys map[string]*rsa.PublicKey) Opt {
	return func(v *Validator) { v.pinnedKeys = keys }
}

// New builds a validator for the authorization server named in opts.
func New(opts core.Options, optFns ...Opt) (*Validator, error) {
	opts = opts.WithDefaults()
	if opts.Address == "" {
		return nil, errors.New("validator: authorization server address is required")
	}

	v := &Validator{
		opts:      opts,
		logger:    logrus.StandardLogger(),
		extractor: core.StaticExtractor(),
	}
	for _, opt := range optFns {
		opt(v)
	}

	httpClient := &http.Client{Timeout: opts.HTTPTimeout}
	policy := resilience.Policy{
		Attempts: opts.RetryAttempts,
		Base:     opts.BackoffBase,
		Logger:   v.logger,
	}

	if v.cache == nil {
		retriever := oidckit.NewRetriever(
			oidckit.WithHTTPClient(httpClient),
			oidckit.WithPolicy(policy),
			oidckit.WithLogger(v.logger),
		)
		v.cache = cache.New(retriever,
			cache.WithTTL(opts.CacheTTL),
			cache.WithLogger(v.logger),
		)
	}
	if v.introspector == nil {
		v.introspector = oidckit.NewIntrospector(
			oidckit.WithClientSecret(opts.ClientID, opts.ClientSecret),
			oidckit.WithIntrospectionHTTPClient(httpClient),
			oidckit.WithIntrospectionPolicy(policy),
			oidckit.WithIntrospectionLogger(v.logger),
		)
	}
	v.verifier = oidckit.NewAccessTokenVerifier(
		oidckit.WithAudience(opts.Audience),
		oidckit.WithAcceptableSkew(opts.Skew),
	)

	if len(v.pinnedKeys) > 0 {
		issuer := strings.TrimRight(opts.Address, "/")
		pinnedMD, err := oidckit.MetadataFromPinned(issuer, v.pinnedKeys)
		if err != nil {
			return nil, err
		}
		v.pinnedMD = pinnedMD
	}

	registry, err := pipeline.NewRegistry(append(v.builtinHandlers(), v.extra...)...)
	if err != nil {
		return nil, err
	}
	v.registry = registry
	return v, nil
}

// Cache exposes the metadata cache, e.g. for wiring a cache.Refresher.
func (v *Validator) Cache() *cache.Cache { return v.cache }

// Validate runs the full pipeline against a transport-specific request
// object. Cancellation of ctx aborts in-flight work and is reported as an
// error, distinct from a rejected credential.
func (v *Validator) Validate(ctx context.Context, req any) (*Result, error) {
	return v.run(ctx, pipeline.NewContext(req, v.opts, v.store))
}

// ValidateToken validates an already-extracted raw token string.
func (v *Validator) ValidateToken(ctx context.Context, rawToken string) (*Result, error) {
	pc := pipeline.NewContext(rawToken, v.opts, v.store)
	pc.RawToken = rawToken
	if rawToken == "" {
		pc.NoCredential()
	}
	return v.run(ctx, pc)
}

func (v *Validator) run(ctx context.Context, pc *pipeline.Context) (*Result, error) {
	if err := v.registry.Run(ctx, pc); err != nil {
		if isCancellation(err) {
			return nil, err
		}
		// Unexpected handler fault: classified and surfaced, never
		// silently swallowed.
		v.logger.WithField("run_id", pc.RunID).WithError(err).Error("validation pipeline fault")
		return nil, err
	}

	// Terminal transition: a run that cleared every stage with a principal
	// succeeded; anything else without an explicit outcome is rejected.
	if !pc.Terminal() {
		if pc.Principal != nil {
			pc.Succeed()
		} else {
			pc.Reject(fmt.Errorf("%w: no principal built", core.ErrTokenInvalid))
		}
	}

	v.logOutcome(ctx, pc)
	res := &Result{Outcome: pc.Outcome()}
	if pc.Outcome() == core.OutcomeSucceeded {
		res.Principal = pc.Principal
	}
	return res, nil
}

func (v *Validator) logOutcome(ctx context.Context, pc *pipeline.Context) {
	entry := v.logger.WithFields(logrus.Fields{
		"run_id":  pc.RunID,
		"outcome": pc.Outcome().String(),
		"mode":    string(v.opts.ValidationType),
	})
	if reason := pc.Reason(); reason != nil && pc.Outcome() == core.OutcomeRejected {
		entry.WithError(reason).Info("credential rejected")
	} else {
		entry.Debug("validation finished")
	}

	if v.events != nil {
		subject := ""
		if pc.Principal != nil {
			subject = pc.Principal.Subject
		}
		reason := ""
		if pc.Reason() != nil {
			reason = pc.Reason().Error()
		}
		accepted := pc.Outcome() == core.OutcomeSucceeded
		_ = v.events.LogValidation(ctx, subject, v.opts.Address, v.opts.ValidationType, accepted, reason)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
