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
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	accounthandler "cashdesk/internal/account/handler"
	accountservice "cashdesk/internal/account/service"
	"cashdesk/internal/compliance/clients"
	compliancemetrics "cashdesk/internal/compliance/metrics"
	complianceports "cashdesk/internal/compliance/ports"
	complianceservice "cashdesk/internal/compliance/service"
	deposithandler "cashdesk/internal/deposit/handler"
	depositmetrics "cashdesk/internal/deposit/metrics"
	depositservice "cashdesk/internal/deposit/service"
	httpapi "cashdesk/internal/http"
	jwttoken "cashdesk/internal/jwt_token"
	ledgerstore "cashdesk/internal/ledger/store"
	"cashdesk/internal/limits"
	"cashdesk/internal/platform/config"
	"cashdesk/internal/platform/httpserver"
	"cashdesk/internal/platform/kafka"
	"cashdesk/internal/platform/logger"
	"cashdesk/internal/platform/metrics"
	"cashdesk/internal/platform/postgres"
	redisplatform "cashdesk/internal/platform/redis"
	ratelimitmetrics "cashdesk/internal/ratelimit/metrics"
	ratelimitports "cashdesk/internal/ratelimit/ports"
	ratelimitservice "cashdesk/internal/ratelimit/service"
	"cashdesk/internal/ratelimit/store/window"
	"cashdesk/pkg/platform/audit"
	"cashdesk/pkg/platform/audit/publisher"
	kafkaaudit "cashdesk/pkg/platform/audit/publishers/kafka"
	auditmemory "cashdesk/pkg/platform/audit/store/memory"
)

// infra holds the optional connections; each is nil when not configured.
type infra struct {
	pool  *pgxpool.Pool
	db    *sql.DB
	redis *redisplatform.Client
	kafka *kgo.Client
}

func (i *infra) Close() {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
	if i.pool != nil {
		i.pool.Close()
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cashdesk:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	reg := metrics.NewRegistry()

	auditPublisher, err := buildAuditPublisher(ctx, cfg, deps, log)
	if err != nil {
		return err
	}
	fingerprinter, err := audit.NewFingerprinter(cfg.Audit.FingerprintKey)
	if err != nil {
		return err
	}

	windows, err := buildWindowStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	limiter, err := ratelimitservice.New(windows,
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New(reg)),
		ratelimitservice.WithLimit(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
	)
	if err != nil {
		return err
	}

	policy := limits.New(
		limits.WithChannelCeiling(limits.ChannelATM, cfg.Limits.ATMCeiling),
		limits.WithChannelCeiling(limits.ChannelBranch, cfg.Limits.BranchCeiling),
		limits.WithAggregateCap(cfg.Limits.AggregateCap, cfg.Limits.AggregateSpan),
	)

	identity, watchlist := buildComplianceClients(cfg.Compliance)
	gate, err := complianceservice.New(identity, watchlist,
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(compliancemetrics.New(reg)),
		complianceservice.WithTimeouts(cfg.Compliance.KYCTimeout, cfg.Compliance.AMLTimeout),
	)
	if err != nil {
		return err
	}

	ledger, err := buildLedger(ctx, cfg, deps)
	if err != nil {
		return err
	}

	deposits, err := depositservice.New(limiter, policy, gate, ledger,
		depositservice.WithLogger(log),
		depositservice.WithMetrics(depositmetrics.New(reg)),
		depositservice.WithAuditPublisher(auditPublisher),
		depositservice.WithFingerprinter(fingerprinter),
		depositservice.WithCommitTimeout(cfg.Ledger.CommitTimeout),
	)
	if err != nil {
		return err
	}
	accounts, err := accountservice.New(ledger,
		accountservice.WithLogger(log),
		accountservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    log,
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Deposits:  deposithandler.New(deposits, log),
		Accounts:  accounthandler.New(accounts, log),
		Registry:  reg,
		Checks:    healthChecks(deps),
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting cashdesk", "addr", cfg.Server.Addr,
			"ledger", cfg.Ledger.Backend,
			"rate_limit_backend", cfg.RateLimit.Backend,
			"compliance", cfg.Compliance.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return limiter.RunPruner(gctx, cfg.RateLimit.PruneInterval, time.Now)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if cerr := auditPublisher.Close(); cerr != nil {
			log.Error("failed to flush audit events", "error", cerr)
		}
		return err
	})
	return g.Wait()
}

func connect(ctx context.Context, cfg *config.Config) (*infra, error) {
	deps := &infra{}
	if cfg.Ledger.Backend == config.BackendPostgres {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		deps.pool = pool
	}
	if cfg.RateLimit.Backend == config.BackendPostgres {
		db, err := postgres.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.db = db
	}
	if cfg.RateLimit.Backend == config.BackendRedis {
		client, err := redisplatform.New(ctx, cfg.Redis)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.redis = client
	}
	client, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.kafka = client
	return deps, nil
}

func buildWindowStore(ctx context.Context, cfg *config.Config, deps *infra) (ratelimitports.WindowStore, error) {
	switch cfg.RateLimit.Backend {
	case config.BackendRedis:
		return window.NewRedisStore(deps.redis.Client, ""), nil
	case config.BackendPostgres:
		store := window.NewPostgresStore(deps.db)
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return window.NewInMemoryStore(), nil
	}
}

func buildLedger(ctx context.Context, cfg *config.Config, deps *infra) (ledgerstore.Store, error) {
	if cfg.Ledger.Backend != config.BackendPostgres {
		return ledgerstore.NewInMemoryStore(), nil
	}
	store := ledgerstore.NewPostgresStore(deps.pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func buildComplianceClients(cfg config.ComplianceConfig) (complianceports.IdentityVerifier, complianceports.WatchlistScreener) {
	if cfg.Mode != config.ComplianceHTTP {
		return clients.NewSimulatedIdentity(), clients.NewSimulatedWatchlist(cfg.WatchlistExtra...)
	}
	breaker := clients.BreakerSettings{
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}
	return clients.NewHTTPIdentity(cfg.KYCURL, cfg.APIKey, nil, breaker),
		clients.NewHTTPWatchlist(cfg.AMLURL, cfg.APIKey, nil, breaker)
}

// buildAuditPublisher streams audit events to Kafka when brokers are
// configured and keeps them in memory otherwise.
func buildAuditPublisher(ctx context.Context, cfg *config.Config, deps *infra, log *slog.Logger) (*publisher.Publisher, error) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if deps.kafka != nil {
		err := kafkaaudit.EnsureTopic(ctx, deps.kafka, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication)
		if err != nil {
			return nil, err
		}
		store = kafkaaudit.New(deps.kafka, cfg.Kafka.AuditTopic)
	}
	return publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
	), nil
}

func healthChecks(deps *infra) map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if deps.pool != nil {
		checks["postgres"] = deps.pool.Ping
	}
	if deps.db != nil {
		checks["rate_windows"] = deps.db.PingContext
	}
	if deps.redis != nil {
		checks["redis"] = deps.redis.Health
	}
	if deps.kafka != nil {
		checks["kafka"] = deps.kafka.Ping
	}
	return checks
}
