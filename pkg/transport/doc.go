// Package transport provides the HTTP server lifecycle and the default
// HTTP middleware stack: panic recovery, request IDs, and structured
// request logging.
package transport
