// Package policy ships the built-in authorization policies: the static
// permit/deny/authenticated trio, role checks, grant-store augmentation,
// and config-driven path rules.
package policy
