// Command gatehouse runs the authorization gateway in front of the
// protected API routes.
//
// Configuration is loaded from YAML (see pkg/config for discovery) with
// GATEHOUSE_* environment overrides; -config selects an explicit file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gatehouse-dev/gatehouse/pkg/config"
	"github.com/gatehouse-dev/gatehouse/pkg/identity"
	"github.com/gatehouse-dev/gatehouse/pkg/identity/apikey"
	"github.com/gatehouse-dev/gatehouse/pkg/identity/jwt"
	"github.com/gatehouse-dev/gatehouse/pkg/observability"
	"github.com/gatehouse-dev/gatehouse/pkg/security"
	"github.com/gatehouse-dev/gatehouse/pkg/security/policy"
	"github.com/gatehouse-dev/gatehouse/pkg/storage"
	"github.com/gatehouse-dev/gatehouse/pkg/storage/memory"
	"github.com/gatehouse-dev/gatehouse/pkg/storage/postgres"
	"github.com/gatehouse-dev/gatehouse/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.Default()

	// Grant store.
	ctx := context.Background()
	store, cleanup, err := buildGrantStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating grant store: %w", err)
	}
	defer cleanup()

	// Credential mechanisms. JWT goes first so API key validation never
	// rejects a well-formed JWT bearer token.
	var mechanisms []identity.Mechanism
	if cfg.Auth.JWT.JWKSURL != "" {
		mechanisms = append(mechanisms, jwt.New(jwt.Config{
			Issuer:         cfg.Auth.JWT.Issuer,
			Audience:       cfg.Auth.JWT.Audience,
			JWKSURL:        cfg.Auth.JWT.JWKSURL,
			PrincipalClaim: cfg.Auth.JWT.PrincipalClaim,
			RolesClaim:     cfg.Auth.JWT.RolesClaim,
			TenantClaim:    cfg.Auth.JWT.TenantClaim,
		}))
		logger.Info("jwt mechanism enabled", "jwks_url", cfg.Auth.JWT.JWKSURL)
	}
	if len(cfg.Auth.APIKeys) > 0 {
		mechanisms = append(mechanisms, apikey.New(apiKeyEntries(cfg.Auth.APIKeys)))
		logger.Info("api key mechanism enabled", "keys", len(cfg.Auth.APIKeys))
	}
	resolver := identity.NewResolver(cfg.Auth.Realm, mechanisms...)

	// Policy chain: grant augmentation first so path rules observe the
	// full role set.
	policies := []security.Policy{
		&policy.GrantAugment{Store: store},
		policy.PathMatch(pathRules(cfg.Auth.Policies), namedPolicy(cfg.Auth.DefaultPolicy, nil)),
	}

	authorizer := security.NewAuthorizer(
		security.StaticController(cfg.Auth.Enabled),
		resolver,
		resolver,
		policies,
		security.WithExecutionContext(security.NewExecutionContext(security.NewDispatcher(cfg.Auth.DispatchWorkers))),
		security.WithLogger(logger),
	)
	if !cfg.Auth.Enabled {
		logger.Warn("authorization is disabled; all requests pass through")
	}

	// Router.
	r := chi.NewRouter()
	r.Use(transport.RequestID())
	r.Use(transport.Logging(logger))
	r.Use(transport.Recovery(logger))
	r.Use(observability.MetricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		r.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	r.Group(func(pr chi.Router) {
		pr.Use(authorizer.Middleware())
		pr.Get("/v1/whoami", whoami)
	})

	srv := transport.NewServer(r,
		transport.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transport.WithReadTimeout(cfg.Server.ReadTimeout),
		transport.WithWriteTimeout(cfg.Server.WriteTimeout),
		transport.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transport.WithServerLogger(logger),
	)
	return srv.ListenAndServe()
}

// buildGrantStore creates the configured grant store and a cleanup
// function.
func buildGrantStore(ctx context.Context, cfg *config.Config) (storage.GrantStore, func(), error) {
	switch cfg.Storage.Type {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := postgres.New(connectCtx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("grant store enabled", "type", "postgres")
		return store, store.Close, nil
	default:
		slog.Info("grant store enabled", "type", "memory", "principals", len(cfg.Storage.Grants))
		return memory.NewSeeded(cfg.Storage.Grants), func() {}, nil
	}
}

// apiKeyEntries converts config entries to mechanism entries.
func apiKeyEntries(keys []config.APIKeyConfig) []apikey.Entry {
	entries := make([]apikey.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, apikey.Entry{
			Key:       k.Key,
			Principal: k.Principal,
			Roles:     k.Roles,
		})
	}
	return entries
}

// pathRules compiles config path rules into policy rules.
func pathRules(rules []config.PathRuleConfig) []policy.Rule {
	out := make([]policy.Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, policy.Rule{
			Pattern: rule.Path,
			Methods: rule.Methods,
			Policy:  namedPolicy(rule.Policy, rule.Roles),
		})
	}
	return out
}

// namedPolicy maps a config policy name to its implementation. Unknown
// names were rejected by config validation; deny is the safe fallback.
func namedPolicy(name string, roles []string) security.Policy {
	switch name {
	case "permit":
		return policy.PermitAll{}
	case "authenticated":
		return policy.Authenticated{}
	case "roles":
		return policy.RolesAllowed(roles...)
	default:
		return policy.DenyAll{}
	}
}

// whoami reports the identity the pipeline associated with the request.
func whoami(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Anonymous bool     `json:"anonymous"`
		Principal string   `json:"principal,omitempty"`
		Roles     []string `json:"roles,omitempty"`
		Tenant    string   `json:"tenant,omitempty"`
	}

	resp := response{Anonymous: true}
	if f := security.IdentityFromContext(r.Context()); f != nil {
		id, err := f.Get(r.Context())
		if err == nil && !id.IsAnonymous() {
			resp = response{
				Principal: id.Principal(),
				Roles:     id.Roles(),
				Tenant:    id.Attribute("tenant"),
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
