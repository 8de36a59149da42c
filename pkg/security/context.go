package security

import (
	"context"
	"fmt"
	"net/http"
)

// identityKey is a private type for the identity context key.
type identityKey struct{}

// ContextWithIdentity stores the request's identity future in the context.
func ContextWithIdentity(ctx context.Context, f *IdentityFuture) context.Context {
	return context.WithValue(ctx, identityKey{}, f)
}

// IdentityFromContext retrieves the identity future installed by the
// authorization pipeline. Returns nil when the request never passed
// through the pipeline.
func IdentityFromContext(ctx context.Context) *IdentityFuture {
	if f, ok := ctx.Value(identityKey{}).(*IdentityFuture); ok {
		return f
	}
	return nil
}

// writeJSONError writes an error response in the gateway's wire format.
func writeJSONError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"type":%q,"message":%q}}`+"\n", kind, message)
}
