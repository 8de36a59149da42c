package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/gatehouse-dev/gatehouse/pkg/observability"
)

// AuthorizationController is the administrative switch consulted once
// per request. When authorization is disabled the gate passes every
// request straight to the next stage.
type AuthorizationController interface {
	AuthorizationEnabled() bool
}

// StaticController is an AuthorizationController with a fixed answer.
type StaticController bool

// AuthorizationEnabled returns the configured value.
func (c StaticController) AuthorizationEnabled() bool { return bool(c) }

// IdentityResolver supplies the identity for a request. Resolution may
// block (network credential validation, say); the pipeline defers it
// until a policy or the deny path actually needs the identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (Identity, error)
}

// ChallengeResponder writes an authentication challenge for a denied
// anonymous request. The boolean reports whether a challenge was
// written; the pipeline is responsible for then ending the response.
type ChallengeResponder interface {
	SendChallenge(ctx context.Context, rc *RequestContext) (bool, error)
}

// Authorizer runs the permission checks for each HTTP request. All
// collaborators are injected at construction; the policy list is fixed
// for the lifetime of the authorizer.
type Authorizer struct {
	controller AuthorizationController
	identities IdentityResolver
	challenger ChallengeResponder
	policies   []Policy
	exec       ExecutionContext
	logger     *slog.Logger
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithExecutionContext replaces the execution bridge handed to policies.
func WithExecutionContext(exec ExecutionContext) AuthorizerOption {
	return func(a *Authorizer) { a.exec = exec }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) AuthorizerOption {
	return func(a *Authorizer) { a.logger = l }
}

// NewAuthorizer creates the authorization gate. policies are evaluated
// in the given order for every request.
func NewAuthorizer(controller AuthorizationController, identities IdentityResolver, challenger ChallengeResponder, policies []Policy, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		controller: controller,
		identities: identities,
		challenger: challenger,
		policies:   append([]Policy(nil), policies...),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.exec == nil {
		a.exec = NewExecutionContext(NewDispatcher(0))
	}
	return a
}

// Middleware mounts the authorizer as net/http middleware. The wrapped
// handler is the stage a permitted request advances to.
func (a *Authorizer) Middleware(opts ...RequestContextOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rcOpts := append([]RequestContextOption{WithContextLogger(a.logger)}, opts...)
			a.CheckPermission(NewRequestContext(w, r, next, rcOpts...))
		})
	}
}

// CheckPermission decides whether the request may proceed. It either
// advances the request to the next stage, writes a challenge, or fails
// the request; it never does more than one of those.
func (a *Authorizer) CheckPermission(rc *RequestContext) {
	if !a.controller.AuthorizationEnabled() {
		rc.Advance()
		return
	}

	identity := rc.identityFuture(func(ctx context.Context) (Identity, error) {
		id, err := a.identities.Resolve(ctx, rc.Request())
		switch {
		case err != nil:
			observability.IdentityResolutionsTotal.WithLabelValues("failed").Inc()
		case id.IsAnonymous():
			observability.IdentityResolutionsTotal.WithLabelValues("anonymous").Inc()
		default:
			observability.IdentityResolutionsTotal.WithLabelValues("ok").Inc()
		}
		return id, err
	})

	a.evaluate(rc, identity)
}

// evaluate walks the policy list in order, carrying the threaded
// identity and the most recent augmentation as plain state. The first
// denial short-circuits; reaching the end of the list is the only
// accept path.
func (a *Authorizer) evaluate(rc *RequestContext, identity *IdentityFuture) {
	ctx := rc.Context()
	var augmented *Identity

	for index := 0; index < len(a.policies); index++ {
		pol := a.policies[index]
		result, err := pol.Check(ctx, rc, identity, a.exec)
		if err != nil {
			observability.PolicyChecksTotal.WithLabelValues(policyName(pol), "error").Inc()
			a.failCheck(rc, err)
			return
		}
		if !result.Permitted() {
			observability.PolicyChecksTotal.WithLabelValues(policyName(pol), "denied").Inc()
			a.deny(identity, rc)
			return
		}
		observability.PolicyChecksTotal.WithLabelValues(policyName(pol), "permitted").Inc()

		// Last augmentation among permits wins: only the most recent
		// replacement identity is threaded to the remaining policies.
		if id, ok := result.AugmentedIdentity(); ok {
			identity = ResolvedIdentity(id)
			augmented = &id
		}
	}

	// Terminal step: install the augmented identity when it actually
	// changes the request's identity association. This is the only
	// place the current-identity slot is mutated, at most once.
	if augmented != nil && !augmented.IsAnonymous() {
		if current, ok := rc.CurrentIdentity(); !ok || !current.Equal(*augmented) {
			rc.SetCurrentIdentity(*augmented)
		}
	}

	a.observe(rc, "permitted")
	rc.Advance()
}

// failCheck surfaces a policy failure exactly once. A failure arriving
// after the response completed, or duplicating the recorded one, is
// suppressed; it still reaches the log unless it is an authentication
// failure, which is expected rather than operational.
func (a *Authorizer) failCheck(rc *RequestContext, err error) {
	if !rc.Ended() && !rc.IsRecordedFailure(err) {
		a.observe(rc, "failed")
		rc.Fail(err)
		return
	}
	if !IsAuthenticationFailure(err) {
		a.logger.Error("authorization check failed", "error", err, "path", rc.Request().URL.Path)
	}
}

// deny resolves the identity as threaded through the chain and picks
// between a challenge and a forbidden failure: a challenge only ever
// goes to a caller that presented no credentials.
func (a *Authorizer) deny(identity *IdentityFuture, rc *RequestContext) {
	id, err := identity.Get(rc.Context())
	if err != nil {
		// Identity resolution failed; this is not a policy denial.
		a.observe(rc, "failed")
		rc.Fail(err)
		return
	}

	if !id.IsAnonymous() {
		a.observe(rc, "forbidden")
		rc.Fail(fmt.Errorf("principal %q: %w", id.Principal(), ErrForbidden))
		return
	}

	sent, err := a.challenger.SendChallenge(rc.Context(), rc)
	if err != nil {
		if !rc.Ended() {
			a.observe(rc, "failed")
			rc.Fail(err)
		} else if isDisconnect(err) {
			a.logger.Debug("challenge aborted by client", "error", err)
		} else {
			a.logger.Error("sending challenge failed", "error", err)
		}
		return
	}
	if sent {
		observability.ChallengesSentTotal.Inc()
	}
	a.observe(rc, "challenged")
	if !rc.Ended() {
		rc.End()
	}
}

// observe records the decision outcome and pipeline latency.
func (a *Authorizer) observe(rc *RequestContext, outcome string) {
	observability.DecisionsTotal.WithLabelValues(outcome).Inc()
	observability.DecisionDuration.WithLabelValues(outcome).Observe(rc.elapsed().Seconds())
}

// policyName labels metrics for a policy.
func policyName(p Policy) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

// isDisconnect reports whether err reflects the client abandoning the
// connection rather than a defect on our side.
func isDisconnect(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
