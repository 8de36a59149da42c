package security

// Identity is the principal associated with a request. The zero value is
// the anonymous identity. Identities are immutable: augmentation builds
// a replacement value, it never mutates in place.
type Identity struct {
	principal  string
	roles      []string
	attributes map[string]string
}

// Anonymous returns the identity a request carries before any
// credentials are resolved.
func Anonymous() Identity {
	return Identity{}
}

// NewIdentity creates an authenticated identity for the given principal.
func NewIdentity(principal string, roles ...string) Identity {
	id := Identity{principal: principal}
	if len(roles) > 0 {
		id.roles = append([]string(nil), roles...)
	}
	return id
}

// IsAnonymous reports whether no principal is associated.
func (id Identity) IsAnonymous() bool {
	return id.principal == ""
}

// Principal returns the unique identifier of the caller, or the empty
// string for the anonymous identity.
func (id Identity) Principal() string {
	return id.principal
}

// Roles returns a copy of the granted roles.
func (id Identity) Roles() []string {
	if len(id.roles) == 0 {
		return nil
	}
	return append([]string(nil), id.roles...)
}

// HasRole reports whether the identity holds the given role.
func (id Identity) HasRole(role string) bool {
	for _, r := range id.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Attribute returns the attribute value for key, or the empty string.
func (id Identity) Attribute(key string) string {
	return id.attributes[key]
}

// WithRoles returns a new identity carrying the existing roles plus the
// given ones. Duplicates are dropped.
func (id Identity) WithRoles(roles ...string) Identity {
	out := id.clone()
	for _, role := range roles {
		if !out.HasRole(role) {
			out.roles = append(out.roles, role)
		}
	}
	return out
}

// WithAttribute returns a new identity with the attribute set.
func (id Identity) WithAttribute(key, value string) Identity {
	out := id.clone()
	if out.attributes == nil {
		out.attributes = make(map[string]string, 1)
	}
	out.attributes[key] = value
	return out
}

// Equal reports whether both identities denote the same principal with
// the same roles and attributes.
func (id Identity) Equal(other Identity) bool {
	if id.principal != other.principal || len(id.roles) != len(other.roles) || len(id.attributes) != len(other.attributes) {
		return false
	}
	for i, role := range id.roles {
		if other.roles[i] != role {
			return false
		}
	}
	for k, v := range id.attributes {
		if other.attributes[k] != v {
			return false
		}
	}
	return true
}

func (id Identity) clone() Identity {
	out := Identity{principal: id.principal}
	out.roles = append([]string(nil), id.roles...)
	if id.attributes != nil {
		out.attributes = make(map[string]string, len(id.attributes))
		for k, v := range id.attributes {
			out.attributes[k] = v
		}
	}
	return out
}
