// Package identity resolves request credentials into identities and
// produces authentication challenges for requests that carry none.
//
// Mechanisms are tried in order; each either resolves an identity,
// abstains with ErrNoCredentials, or rejects the credentials it found.
// When every mechanism abstains the request proceeds as anonymous, and
// the authorization pipeline decides whether anonymous is acceptable.
package identity
