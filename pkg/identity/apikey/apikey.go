// Package apikey provides an API key mechanism that validates bearer
// tokens against a static key store using SHA-256 hashing and
// constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gatehouse-dev/gatehouse/pkg/identity"
	"github.com/gatehouse-dev/gatehouse/pkg/security"
)

// Entry describes one configured API key.
type Entry struct {
	Key        string
	Principal  string
	Roles      []string
	Attributes map[string]string
}

// keyEntry maps a key hash to an identity.
type keyEntry struct {
	hash [32]byte
	id   security.Identity
}

// Mechanism validates bearer tokens against a static key store.
type Mechanism struct {
	keys []keyEntry
}

// Ensure Mechanism satisfies the resolver contract at compile time.
var _ identity.Mechanism = (*Mechanism)(nil)

// New creates an API key mechanism from configured entries. Keys are
// hashed immediately; plaintext keys are not retained.
func New(entries []Entry) *Mechanism {
	m := &Mechanism{}
	for _, e := range entries {
		id := security.NewIdentity(e.Principal, e.Roles...)
		for k, v := range e.Attributes {
			id = id.WithAttribute(k, v)
		}
		m.keys = append(m.keys, keyEntry{
			hash: sha256.Sum256([]byte(e.Key)),
			id:   id,
		})
	}
	return m
}

// Scheme advertises the challenge scheme.
func (m *Mechanism) Scheme() string { return "Bearer" }

// Resolve extracts the bearer token and validates it. Abstains when no
// Authorization header or no Bearer scheme is present.
func (m *Mechanism) Resolve(_ context.Context, r *http.Request) (security.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return security.Anonymous(), identity.ErrNoCredentials
	}

	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return security.Anonymous(), fmt.Errorf("empty bearer token")
	}

	// Hash the token and compare against stored hashes.
	tokenHash := sha256.Sum256([]byte(token))

	for _, entry := range m.keys {
		if subtle.ConstantTimeCompare(tokenHash[:], entry.hash[:]) == 1 {
			return entry.id, nil
		}
	}

	return security.Anonymous(), fmt.Errorf("unknown API key")
}
