package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	appservice "github.com/kunay1/seal/internal/application/service"
	"github.com/kunay1/seal/internal/config"
	domainservice "github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/internal/infrastructure/audit"
	"github.com/kunay1/seal/internal/infrastructure/cache"
	"github.com/kunay1/seal/internal/infrastructure/chain"
	"github.com/kunay1/seal/internal/infrastructure/crypto"
	"github.com/kunay1/seal/internal/infrastructure/kms"
	"github.com/kunay1/seal/internal/infrastructure/monitoring"
	redisconn "github.com/kunay1/seal/internal/infrastructure/persistence/redis"
	"github.com/kunay1/seal/internal/infrastructure/policy"
	"github.com/kunay1/seal/internal/infrastructure/ratelimit"
	redisstore "github.com/kunay1/seal/internal/infrastructure/redis"
	grpcserver "github.com/kunay1/seal/internal/interfaces/grpc"
	sealhttp "github.com/kunay1/seal/internal/interfaces/http"
	"github.com/kunay1/seal/internal/interfaces/http/handlers"
	"github.com/kunay1/seal/pkg/constants"
	"github.com/kunay1/seal/pkg/logger"
)

const (
	healthRefreshInterval = 10 * time.Second
	bucketCleanupInterval = 5 * time.Minute
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "seal-server",
		Short:         "Seal key server node",
		Version:       constants.ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default ./config.yaml or /etc/seal/config.yaml)")

	if err := cmd.Execute(); err != nil {
		log.Printf("seal-server: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info", Format: "json", OutputPath: "stderr"})
	if err != nil {
		return fmt.Errorf("failed to create startup logger: %w", err)
	}

	// Load config
	loader := config.NewLoader(configPath, startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	appLogger = appLogger.WithFields(logger.String("service_version", constants.ServiceVersion))

	// Initialize tracing and metrics
	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = tracing.Shutdown(sctx)
	}()
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	clock, err := domainservice.NewSystemClock()
	if err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	// Initialize Redis
	var redisConn *redisconn.RedisConnection
	if cfg.Redis.Enabled {
		redisConn = redisconn.NewRedisConnection(&cfg.Redis, appLogger)
		if err := redisConn.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisConn.Close()
	}

	// Key authority
	authority, err := loadKeyAuthority(ctx, cfg, metrics, appLogger)
	if err != nil {
		return err
	}
	appLogger.Info(ctx, "Key authority ready",
		logger.String("source", cfg.KeyAuthority.Source),
		logger.String("master_id", authority.MasterID()))

	// Chain evaluator
	evaluator, err := newEvaluator(cfg, appLogger)
	if err != nil {
		return err
	}

	// Audit sink
	var auditSink domainservice.AuditService
	if cfg.Kafka.Enabled {
		producer, err := audit.NewKafkaProducer(cfg.Kafka, appLogger)
		if err != nil {
			return err
		}
		defer producer.Close()
		auditSink = producer
	} else {
		auditSink = audit.NewLogSink(appLogger)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Authorization
	opts := []domainservice.AuthorizationOption{
		domainservice.WithMetrics(metrics),
		domainservice.WithTracer(tracing.Tracer()),
		domainservice.WithReplayCache(newReplayCache(cfg, redisConn)),
	}
	if cfg.RateLimit.Enabled {
		limiter, cleanup, err := newRateLimiter(cfg, redisConn, appLogger)
		if err != nil {
			return err
		}
		opts = append(opts, domainservice.WithRateLimiter(limiter))
		g.Go(func() error {
			every(gctx, bucketCleanupInterval, func() { cleanup(bucketCleanupInterval) })
			return nil
		})
	}
	authorizer := domainservice.NewAuthorizationService(clock, evaluator,
		policyFromConfig(cfg.Policy, cfg.RateLimit.Dimension), appLogger, opts...)
	loader.WatchPolicy(func(p config.PolicyConfig) {
		authorizer.UpdatePolicy(policyFromConfig(p, cfg.RateLimit.Dimension))
	})

	builder := domainservice.NewResponseBuilder(authority, crypto.NewBoxEncryptor(), metrics, appLogger)
	keyApp := appservice.NewKeyAppService(authorizer, builder, authority, auditSink, metrics, cfg.Server.ServiceID, appLogger)

	// Interfaces
	checkers := map[string]handlers.HealthChecker{}
	if redisConn != nil {
		checkers["redis"] = redisConn
	}
	healthHandler := handlers.NewHealthHandler(checkers, appLogger)
	router := sealhttp.NewRouter(cfg, appLogger,
		handlers.NewKeyHandler(keyApp, appLogger),
		healthHandler,
		handlers.NewMiddleware(appLogger),
		tracing.Tracer(),
		metrics,
		prometheus.DefaultGatherer,
	)
	g.Go(router.Start)

	var grpcSrv *grpcserver.HealthServer
	if cfg.Server.GRPCPort > 0 {
		grpcSrv = grpcserver.NewHealthServer(cfg.Server.GRPCAddr(), healthHandler.Check, appLogger)
		g.Go(grpcSrv.Start)
		g.Go(func() error {
			grpcSrv.Monitor(gctx, healthRefreshInterval)
			return nil
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info(context.Background(), "Shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			grpcSrv.Stop(sctx)
		}
		if err := router.Stop(sctx); err != nil && err != http.ErrServerClosed {
			appLogger.Error(sctx, "HTTP server forced to shutdown", err)
		}
		if err := keyApp.Close(sctx); err != nil {
			appLogger.Warn(sctx, "Pending audit events dropped", logger.Err(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		appLogger.Error(context.Background(), "Server exited with error", err)
		return err
	}
	appLogger.Info(context.Background(), "Server stopped")
	return nil
}

func loadKeyAuthority(ctx context.Context, cfg *config.Config, metrics domainservice.Metrics, log logger.Logger) (*kms.HKDFKeyAuthority, error) {
	var src kms.MasterSecretSource
	switch cfg.KeyAuthority.Source {
	case "vault":
		client, err := kms.NewVaultClient(cfg.Vault)
		if err != nil {
			return nil, err
		}
		src = kms.NewVaultProvider(cfg.Vault, client, metrics, log)
	default:
		log.Warn(ctx, "Using a static master secret; never do this in production")
		src = kms.NewStaticSecretSource(cfg.KeyAuthority.MasterSecretHex)
	}

	authority, err := kms.LoadKeyAuthority(ctx, src, cfg.KeyAuthority.ShareCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to load key authority: %w", err)
	}
	return authority.WithMetrics(metrics), nil
}

// newEvaluator returns the chain evaluator. Evaluation metrics are recorded by the orchestrator.
func newEvaluator(cfg *config.Config, log logger.Logger) (domainservice.ChainEvaluator, error) {
	if cfg.Chain.Mode == "static" {
		log.Warn(context.Background(), "Evaluating policies against a static allowlist",
			logger.String("file", cfg.Chain.StaticPolicyFile))
		static, err := policy.LoadStaticEvaluator(cfg.Chain.StaticPolicyFile)
		if err != nil {
			return nil, err
		}
		return static, nil
	}
	rpc, err := chain.NewRPCEvaluator(cfg.Chain, nil, log)
	if err != nil {
		return nil, err
	}
	return rpc, nil
}

// newRateLimiter returns the limiter and its idle-bucket cleanup.
func newRateLimiter(cfg *config.Config, conn *redisconn.RedisConnection, log logger.Logger) (domainservice.RateLimitService, func(time.Duration) int, error) {
	if conn == nil {
		local := ratelimit.NewLocalRateLimiter(int64(cfg.RateLimit.Requests), cfg.RateLimit.Window)
		return local, local.Cleanup, nil
	}
	rl, err := ratelimit.NewRedisRateLimiter(conn.GetClient(), &ratelimit.RateLimiterConfig{
		Limit:               int64(cfg.RateLimit.Requests),
		Window:              cfg.RateLimit.Window,
		EnableLocalFallback: cfg.RateLimit.LocalFallback,
		KeyPrefix:           "seal:ratelimit",
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return rl, rl.CleanupLocalBuckets, nil
}

func newReplayCache(cfg *config.Config, conn *redisconn.RedisConnection) domainservice.ReplayCache {
	if cfg.Policy.ReplayStore == "redis" && conn != nil {
		return redisstore.NewReplayStore(conn.GetClient(), "seal:replay")
	}
	return cache.NewMemoryReplayCache(time.Minute)
}

func policyFromConfig(p config.PolicyConfig, dimension string) domainservice.Policy {
	window := p.MaxRequestAge
	if window <= 0 {
		window = time.Duration(p.MaxCertificateTTLMinutes) * time.Minute
	}
	return domainservice.Policy{
		MaxCertificateTTLMin: uint16(p.MaxCertificateTTLMinutes),
		MaxRequestAge:        p.MaxRequestAge,
		MaxPolicyIDs:         p.MaxPolicyIDs,
		EvaluatorTimeout:     p.EvaluatorTimeout,
		ReplayProtection:     p.ReplayProtection,
		ReplayWindow:         window,
		RateLimitDimension:   constants.RateLimitDimension(dimension),
	}
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
