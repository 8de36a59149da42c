// Package security implements the HTTP request authorization pipeline.
//
// The Authorizer walks an ordered list of policies for each request.
// Policies vote permit or deny; a permitting policy may also replace the
// identity threaded to the policies after it. The first denial stops the
// chain: anonymous requests receive an authentication challenge, while
// authenticated requests are failed as forbidden. Reaching the end of
// the list is the only way a request advances to the next stage.
//
// Policies may contain blocking logic (a database role lookup, say) even
// though the caller might sit on a non-blocking dispatch path. The
// ExecutionContext passed to every check reconciles the two: it runs the
// callback inline when blocking is permitted and shifts it onto a shared
// bounded worker pool otherwise.
package security
