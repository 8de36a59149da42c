package config

import (
	"errors"
	"fmt"
)

// knownPolicies lists the policy names usable in path rules and as the
// default policy.
var knownPolicies = map[string]bool{
	"permit":        true,
	"deny":          true,
	"authenticated": true,
	"roles":         true,
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// auth.default_policy must be a known terminal policy.
	switch c.Auth.DefaultPolicy {
	case "permit", "deny", "authenticated":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.default_policy must be \"permit\", \"deny\", or \"authenticated\", got %q", c.Auth.DefaultPolicy))
	}

	// Path rules need a pattern and a known policy; the roles policy
	// needs at least one role.
	for i, rule := range c.Auth.Policies {
		if rule.Path == "" {
			errs = append(errs, fmt.Errorf("auth.policies[%d].path is required", i))
		}
		if !knownPolicies[rule.Policy] {
			errs = append(errs, fmt.Errorf("auth.policies[%d].policy must be one of \"permit\", \"deny\", \"authenticated\", \"roles\", got %q", i, rule.Policy))
		}
		if rule.Policy == "roles" && len(rule.Roles) == 0 {
			errs = append(errs, fmt.Errorf("auth.policies[%d].roles is required for the roles policy", i))
		}
	}

	// API key entries need a key and a principal.
	for i, key := range c.Auth.APIKeys {
		if key.Key == "" && key.KeyFile == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].key or key_file is required", i))
		}
		if key.Principal == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].principal is required", i))
		}
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	return errors.Join(errs...)
}
