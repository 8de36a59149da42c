// Package memory provides an in-process GrantStore backed by a map.
// Suitable for development and for deployments whose grants fit in the
// config file.
package memory

import (
	"context"
	"sync"
)

// Store is a mutex-guarded in-memory grant store.
type Store struct {
	mu     sync.RWMutex
	grants map[string][]string
}

// New creates an empty store.
func New() *Store {
	return &Store{grants: make(map[string][]string)}
}

// NewSeeded creates a store pre-populated with the given grants,
// typically loaded from configuration.
func NewSeeded(grants map[string][]string) *Store {
	s := New()
	for principal, roles := range grants {
		s.Grant(principal, roles...)
	}
	return s
}

// Grant adds roles for principal. Duplicates are dropped.
func (s *Store) Grant(principal string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.grants[principal]
	for _, role := range roles {
		if !contains(existing, role) {
			existing = append(existing, role)
		}
	}
	s.grants[principal] = existing
}

// Revoke removes a role grant for principal.
func (s *Store) Revoke(principal, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := s.grants[principal]
	for i, r := range roles {
		if r == role {
			s.grants[principal] = append(roles[:i], roles[i+1:]...)
			return
		}
	}
}

// RolesFor returns a copy of the roles granted to principal.
func (s *Store) RolesFor(_ context.Context, principal string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := s.grants[principal]
	if len(roles) == 0 {
		return nil, nil
	}
	return append([]string(nil), roles...), nil
}

func contains(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
