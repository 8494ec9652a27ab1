package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"taxgate/internal/admin"
	"taxgate/internal/authz"
	authzmetrics "taxgate/internal/authz/metrics"
	httpapi "taxgate/internal/http"
	identityhandler "taxgate/internal/identity/handler"
	identityservice "taxgate/internal/identity/service"
	"taxgate/internal/identity/store/revocation"
	userstore "taxgate/internal/identity/store/user"
	orghandler "taxgate/internal/organization/handler"
	orgservice "taxgate/internal/organization/service"
	orgstore "taxgate/internal/organization/store"
	"taxgate/internal/platform/config"
	"taxgate/internal/platform/httpserver"
	"taxgate/internal/platform/logger"
	platformmetrics "taxgate/internal/platform/metrics"
	platformredis "taxgate/internal/platform/redis"
	taxpayerhandler "taxgate/internal/taxpayer/handler"
	taxpayermetrics "taxgate/internal/taxpayer/metrics"
	taxpayerservice "taxgate/internal/taxpayer/service"
	taxpayerstore "taxgate/internal/taxpayer/store"
	"taxgate/internal/token"
	"taxgate/pkg/platform/audit"
	auditmetrics "taxgate/pkg/platform/audit/metrics"
	kafkasink "taxgate/pkg/platform/audit/sink/kafka"
	auditmemory "taxgate/pkg/platform/audit/store/memory"
	auditpostgres "taxgate/pkg/platform/audit/store/postgres"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// revocationStore is what both revocation list implementations provide: the
// identity service revokes, the resolver checks.
type revocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

func run(cfg config.Config, log *slog.Logger) error {
	checks := map[string]httpapi.HealthCheck{}

	// Persistence. Without a DSN everything runs in memory, which is only
	// useful for local development.
	var (
		users        identityservice.UserStore
		orgs         orgservice.Store
		taxpayers    taxpayerservice.Store
		auditPrimary audit.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		checks["postgres"] = db.PingContext
		users = userstore.NewPostgres(db)
		orgs = orgstore.NewPostgres(db)
		taxpayers = taxpayerstore.NewPostgres(db)
		auditPrimary = auditpostgres.New(db)
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		users = userstore.NewInMemoryStore()
		orgs = orgstore.NewInMemoryStore()
		taxpayers = taxpayerstore.NewInMemoryStore()
		auditPrimary = auditmemory.NewInMemoryStore()
	}

	// Token revocation list. Redis when configured, in-process otherwise.
	var revoker revocationStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
		revoker = revocation.NewRedisStore(redisClient.Client)
	} else {
		log.Warn("redis not configured, token revocation is process-local")
		revoker = revocation.NewInMemoryStore()
	}

	// Audit pipeline: durable primary plus optional Kafka export.
	auditStore := audit.Store(auditPrimary)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.New(context.Background(), cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return fmt.Errorf("connect kafka audit sink: %w", err)
		}
		defer sink.Close()
		auditStore = audit.NewFanout(auditPrimary, sink)
	}
	recorder := audit.NewRecorder(auditStore,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithAsyncBuffer(cfg.Audit.BufferSize),
		audit.WithStoreTimeout(cfg.Audit.StoreTimeout),
	)
	defer recorder.Close()

	// Identity and authorization.
	tokens := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	identity := identityservice.New(users, tokens, cfg.Auth.TokenTTL,
		identityservice.WithLogger(log),
		identityservice.WithRevoker(revoker),
	)
	if cfg.Auth.SeedAdminEmail != "" && cfg.Auth.SeedAdminPassword != "" {
		if err := identity.EnsureAdmin(context.Background(), cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword); err != nil {
			return fmt.Errorf("seed admin account: %w", err)
		}
	} else {
		log.Warn("seed admin disabled; ensure an admin account exists or no one can log in")
	}
	resolver := authz.NewResolver(tokens, identity,
		authz.WithResolverLogger(log),
		authz.WithRevocationChecker(revoker),
	)
	enforcerOpts := []authz.EnforcerOption{
		authz.WithEnforcerLogger(log),
		authz.WithEnforcerMetrics(authzmetrics.New()),
	}
	if cfg.Audit.RegulatedMode {
		enforcerOpts = append(enforcerOpts, authz.WithAuthFailureAuditing())
	}
	enforcer := authz.NewEnforcer(resolver, authz.NewEngine(authz.DefaultRules()), recorder, enforcerOpts...)

	// Domain services and their HTTP handlers.
	orgService := orgservice.New(orgs, log)
	taxpayerService := taxpayerservice.New(taxpayers,
		taxpayerservice.WithLogger(log),
		taxpayerservice.WithMetrics(taxpayermetrics.New()),
	)
	router := httpapi.NewRouter(platformmetrics.New(), checks,
		identityhandler.New(identity, enforcer, log),
		orghandler.New(orgService, enforcer, log),
		taxpayerhandler.New(taxpayerService, enforcer, log),
		admin.New(auditStore, enforcer, log),
	)

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("taxgate listening", "addr", cfg.Server.Addr, "regulated_mode", cfg.Audit.RegulatedMode)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	// Shut the listener down first; the deferred recorder.Close drains any
	// buffered audit records after the last request finishes.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
