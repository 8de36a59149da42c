// Package storage defines role grant lookup for the authorization
// pipeline. Grants map a principal to additional roles beyond those the
// credential itself carries; the GrantAugment policy folds them into the
// request identity.
package storage

import "context"

// GrantStore looks up role grants for a principal.
type GrantStore interface {
	// RolesFor returns the roles granted to principal. An unknown
	// principal yields an empty slice, not an error.
	RolesFor(ctx context.Context, principal string) ([]string, error)
}
