// Package jwt provides a JWT/OIDC mechanism that validates bearer
// tokens against a JWKS (JSON Web Key Set) endpoint.
//
// It supports RSA-signed JWTs with configurable issuer, audience, and
// claim mapping for the principal, roles, and tenant.
package jwt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse-dev/gatehouse/pkg/identity"
	"github.com/gatehouse-dev/gatehouse/pkg/security"
)

// Config holds the JWT mechanism configuration.
type Config struct {
	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// JWKSURL is the URL of the JSON Web Key Set used for signature
	// verification.
	JWKSURL string

	// PrincipalClaim names the claim used as the principal. Default: "sub".
	PrincipalClaim string

	// RolesClaim names the claim holding granted roles. Default: "roles".
	// The value can be a space-separated string or a JSON array.
	RolesClaim string

	// TenantClaim names the claim mapped to the "tenant" identity
	// attribute. Default: "tenant_id".
	TenantClaim string

	// CacheTTL controls how long JWKS keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// applyDefaults fills in zero-value fields.
func (c *Config) applyDefaults() {
	if c.PrincipalClaim == "" {
		c.PrincipalClaim = "sub"
	}
	if c.RolesClaim == "" {
		c.RolesClaim = "roles"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 1 * time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Mechanism validates JWT bearer tokens against a JWKS endpoint.
type Mechanism struct {
	config Config
	keys   *keyCache
}

// Ensure Mechanism satisfies the resolver contract at compile time.
var _ identity.Mechanism = (*Mechanism)(nil)

// New creates a JWT mechanism with the given configuration.
func New(cfg Config) *Mechanism {
	cfg.applyDefaults()
	return &Mechanism{
		config: cfg,
		keys:   newKeyCache(cfg.JWKSURL, cfg.CacheTTL, cfg.HTTPClient),
	}
}

// Scheme advertises the challenge scheme.
func (m *Mechanism) Scheme() string { return "Bearer" }

// Resolve extracts a bearer token from the Authorization header,
// validates it as a JWT, and builds an identity from its claims.
// Abstains when no bearer credential is present.
func (m *Mechanism) Resolve(ctx context.Context, r *http.Request) (security.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return security.Anonymous(), identity.ErrNoCredentials
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return security.Anonymous(), fmt.Errorf("empty bearer token")
	}

	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token missing kid header")
		}

		key, fetchErr := m.keys.get(ctx, kid)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, fetchErr)
		}
		return key, nil
	}, m.parserOptions()...)
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return security.Anonymous(), fmt.Errorf("invalid JWT: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return security.Anonymous(), fmt.Errorf("invalid JWT claims")
	}

	principal := claimString(claims, m.config.PrincipalClaim)
	if principal == "" {
		return security.Anonymous(), fmt.Errorf("JWT missing %q claim", m.config.PrincipalClaim)
	}

	id := security.NewIdentity(principal, claimStrings(claims, m.config.RolesClaim)...)
	if tenant := claimString(claims, m.config.TenantClaim); tenant != "" {
		id = id.WithAttribute("tenant", tenant)
	}
	return id, nil
}

// parserOptions builds JWT parser options from the configuration.
func (m *Mechanism) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(m.config.Audience))
	}
	return opts
}

// claimString extracts a string claim, or empty when missing or not a
// string.
func claimString(claims jwtlib.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

// claimStrings extracts a list claim. The value can be a space-separated
// string or a JSON array of strings.
func claimStrings(claims jwtlib.MapClaims, key string) []string {
	val, ok := claims[key]
	if !ok {
		return nil
	}

	if s, ok := val.(string); ok {
		parts := strings.Fields(s)
		if len(parts) == 0 {
			return nil
		}
		return parts
	}

	if arr, ok := val.([]interface{}); ok {
		var out []string
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	return nil
}
