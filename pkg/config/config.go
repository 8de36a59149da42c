// Package config provides unified configuration for the gatehouse
// authorization gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (GATEHOUSE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the gatehouse gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
}

// AuthConfig holds the authorization pipeline settings.
type AuthConfig struct {
	// Enabled is the administrative switch for the whole pipeline.
	// When false every request passes straight through. Default: true.
	Enabled bool `yaml:"enabled"`

	// Realm appears in WWW-Authenticate challenges.
	Realm string `yaml:"realm"`

	// DefaultPolicy applies to paths matching no rule:
	// "permit", "deny", or "authenticated". Default: "permit".
	DefaultPolicy string `yaml:"default_policy"`

	// DispatchWorkers bounds the pool running blocking policy
	// callbacks. Default: 64.
	DispatchWorkers int `yaml:"dispatch_workers"`

	JWT      JWTConfig        `yaml:"jwt"`
	APIKeys  []APIKeyConfig   `yaml:"api_keys"`
	Policies []PathRuleConfig `yaml:"policies"`
}

// JWTConfig holds JWT mechanism settings. The mechanism is enabled when
// JWKSURL is non-empty.
type JWTConfig struct {
	Issuer         string `yaml:"issuer"`
	Audience       string `yaml:"audience"`
	JWKSURL        string `yaml:"jwks_url"`
	PrincipalClaim string `yaml:"principal_claim"` // default: "sub"
	RolesClaim     string `yaml:"roles_claim"`     // default: "roles"
	TenantClaim    string `yaml:"tenant_claim"`    // default: "tenant_id"
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key       string   `yaml:"key"`
	KeyFile   string   `yaml:"key_file"` // _file variant for key
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// PathRuleConfig maps request paths to a named policy. Patterns are
// exact paths or trailing-wildcard prefixes ("/admin/*"); rules apply
// in order, first match wins.
type PathRuleConfig struct {
	Path    string   `yaml:"path"`
	Methods []string `yaml:"methods"` // empty matches all methods
	Policy  string   `yaml:"policy"`  // "permit", "deny", "authenticated", "roles"
	Roles   []string `yaml:"roles"`   // for policy: "roles"
}

// StorageConfig holds role grant store settings.
type StorageConfig struct {
	Type     string              `yaml:"type"`   // "memory" or "postgres", default: "memory"
	Grants   map[string][]string `yaml:"grants"` // seed grants for the memory store
	Postgres PostgresConfig      `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Enabled:         true,
			Realm:           "gatehouse",
			DefaultPolicy:   "permit",
			DispatchWorkers: 64,
		},
		Storage: StorageConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
