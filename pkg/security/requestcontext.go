package security

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RequestContext carries the per-request state the authorization
// pipeline is allowed to touch: the current identity association, the
// ended/failed state of the response, and the recorded failure. It is
// created by the middleware before the gate runs; the surrounding
// request pipeline owns its lifecycle.
type RequestContext struct {
	w    http.ResponseWriter
	r    *http.Request
	next http.Handler

	logger          *slog.Logger
	blockingAllowed bool
	started         time.Time

	mu       sync.Mutex
	ended    bool
	failure  error
	identity *IdentityFuture
}

// RequestContextOption configures a RequestContext.
type RequestContextOption func(*RequestContext)

// WithBlockingDisallowed marks the request as running on a non-blocking
// dispatch path. Policies that need blocking work are then shifted onto
// the shared dispatch pool instead of running inline.
//
// The default allows blocking: net/http gives every request its own
// goroutine.
func WithBlockingDisallowed() RequestContextOption {
	return func(rc *RequestContext) { rc.blockingAllowed = false }
}

// WithContextLogger sets the structured logger used for failure reporting.
func WithContextLogger(l *slog.Logger) RequestContextOption {
	return func(rc *RequestContext) { rc.logger = l }
}

// NewRequestContext wraps a request for authorization. next is the
// handler the request advances to when every policy permits; it may be
// nil when the pipeline is driven directly.
func NewRequestContext(w http.ResponseWriter, r *http.Request, next http.Handler, opts ...RequestContextOption) *RequestContext {
	rc := &RequestContext{
		w:               w,
		r:               r,
		next:            next,
		logger:          slog.Default(),
		blockingAllowed: true,
		started:         time.Now(),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Request returns the underlying HTTP request.
func (rc *RequestContext) Request() *http.Request {
	return rc.r
}

// Context returns the request's context.
func (rc *RequestContext) Context() context.Context {
	return rc.r.Context()
}

// BlockingAllowed reports whether the goroutine driving this request may
// perform blocking work directly.
func (rc *RequestContext) BlockingAllowed() bool {
	return rc.blockingAllowed
}

// Ended reports whether the response is complete. A dropped client
// connection counts as ended: nothing may be written after it.
func (rc *RequestContext) Ended() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.ended || rc.r.Context().Err() != nil
}

// End completes the response. Ending twice is a defect and is reported
// in the log rather than acted on.
func (rc *RequestContext) End() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.ended {
		rc.logger.Warn("response ended twice", "path", rc.r.URL.Path)
		return
	}
	rc.ended = true
}

// Failure returns the failure recorded on this request, or nil.
func (rc *RequestContext) Failure() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.failure
}

// Fail records cause as the request's failure and writes the matching
// error response: 401 for authentication failures, 403 for forbidden,
// 500 otherwise. A second failure against an already ended or failed
// request is swallowed with at most a log line, so one root cause is
// never reported twice.
func (rc *RequestContext) Fail(cause error) {
	rc.mu.Lock()
	if rc.ended || rc.r.Context().Err() != nil {
		already := rc.failure
		rc.mu.Unlock()
		if !IsAuthenticationFailure(cause) && !sameFailure(cause, already) {
			rc.logger.Warn("failure after response completed", "error", cause, "path", rc.r.URL.Path)
		}
		return
	}
	rc.failure = cause
	rc.ended = true
	rc.mu.Unlock()

	switch {
	case IsAuthenticationFailure(cause):
		writeJSONError(rc.w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case IsForbidden(cause):
		writeJSONError(rc.w, http.StatusForbidden, "forbidden", "access denied")
	default:
		rc.logger.Error("request failed during authorization", "error", cause, "path", rc.r.URL.Path)
		writeJSONError(rc.w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

// WriteChallenge writes an authentication challenge header with a 401
// status. Returns false when the response already completed, in which
// case nothing is written.
func (rc *RequestContext) WriteChallenge(challenge string) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.ended || rc.r.Context().Err() != nil {
		return false
	}
	rc.w.Header().Set("WWW-Authenticate", challenge)
	rc.w.WriteHeader(http.StatusUnauthorized)
	return true
}

// CurrentIdentity returns the identity currently associated with the
// request, if its resolution already completed.
func (rc *RequestContext) CurrentIdentity() (Identity, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.identity == nil {
		return Identity{}, false
	}
	return rc.identity.Peek()
}

// SetCurrentIdentity replaces the request's identity association. The
// new identity is stored as an already-resolved future so downstream
// consumers expecting a deferred identity keep working.
func (rc *RequestContext) SetCurrentIdentity(id Identity) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.identity = ResolvedIdentity(id)
}

// AttachIdentity caches an identity future on the request, typically set
// by a prior authentication step.
func (rc *RequestContext) AttachIdentity(f *IdentityFuture) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.identity = f
}

// identityFuture returns the cached identity future, creating a deferred
// one from resolve when none is attached yet.
func (rc *RequestContext) identityFuture(resolve func(context.Context) (Identity, error)) *IdentityFuture {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.identity == nil {
		rc.identity = DeferIdentity(resolve)
	}
	return rc.identity
}

// Advance hands the request to the next processing stage with the
// current identity available from the request context.
func (rc *RequestContext) Advance() {
	if rc.next == nil {
		return
	}
	rc.mu.Lock()
	identity := rc.identity
	rc.mu.Unlock()

	r := rc.r
	if identity != nil {
		r = r.WithContext(ContextWithIdentity(r.Context(), identity))
	}
	rc.next.ServeHTTP(rc.w, r)
}

// elapsed returns the time since the request entered the pipeline.
func (rc *RequestContext) elapsed() time.Duration {
	return time.Since(rc.started)
}

// IsRecordedFailure reports whether err matches the failure already
// recorded on this request.
func (rc *RequestContext) IsRecordedFailure(err error) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return sameFailure(err, rc.failure)
}

// sameFailure reports whether both errors denote the same root cause.
func sameFailure(err, recorded error) bool {
	if err == nil || recorded == nil {
		return false
	}
	return err == recorded || errors.Is(err, recorded) || errors.Is(recorded, err)
}
