// Package main is the entry point for the instagram-connector, which serves
// Instagram Messaging webhooks (direct messages and comment events) and
// dispatches outbound replies through the Graph API.
//
// Echo messages (is_echo, our own sends reflected back) and read receipts
// are dropped by the parser, so only genuine user activity reaches the
// pipeline. Boot behaves like the other connectors: fail-closed outside
// development, degraded-but-running in development, and outbound dispatch
// gated on Redis being reachable.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/chatmesh/connectors/internal/client"
	"github.com/chatmesh/connectors/internal/config"
	"github.com/chatmesh/connectors/internal/connector"
	"github.com/chatmesh/connectors/internal/consumer"
	"github.com/chatmesh/connectors/internal/dedupe"
	"github.com/chatmesh/connectors/internal/dispatcher"
	"github.com/chatmesh/connectors/internal/events"
	"github.com/chatmesh/connectors/internal/handler"
	"github.com/chatmesh/connectors/internal/natsclient"
	"github.com/chatmesh/connectors/internal/platform/instagram"
	"github.com/chatmesh/connectors/internal/ratelimit"
	"github.com/chatmesh/connectors/internal/runtime"
	"github.com/chatmesh/connectors/internal/signature"
	"github.com/chatmesh/connectors/internal/telemetry"
)

const (
	serviceName = "instagram-connector"
	envPrefix   = "INSTAGRAM"

	redisPingTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	cfg, err := config.Load(envPrefix)
	if err != nil {
		bootFatal("Invalid environment configuration", err)
	}

	// --- Structured Logger ---
	logger, err := telemetry.NewLogger(cfg.Env, serviceName, "instagram")
	if err != nil {
		bootFatal("Logger initialization failed", err)
	}
	defer logger.Sync()

	// --- OpenTelemetry ---
	var meter metric.Meter
	if cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
		if err != nil {
			logger.Error("Failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", cfg.OTELEndpoint))
		}
		mp, err := telemetry.InitMeterProvider(context.Background(), serviceName, cfg.OTELEndpoint)
		if err != nil {
			logger.Error("Failed to init OTel meter provider", zap.Error(err))
		} else {
			defer mp.Shutdown(context.Background())
			meter = mp.Meter(serviceName)
		}
	}
	metrics := telemetry.NewMetrics(logger, meter)

	// --- Vault Secret Overlay ---
	if cfg.VaultAddr != "" {
		if err := overlayVaultSecrets(cfg); err != nil {
			if cfg.Env == config.EnvProduction {
				logger.Fatal("Vault secret loading failed", zap.Error(err))
			}
			logger.Warn("Vault unavailable, continuing with environment secrets", zap.Error(err))
		} else {
			logger.Info("Vault secrets applied", zap.String("path", vaultPath(cfg)))
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Boot requirements not met", zap.Error(err))
	}

	m := instagram.Manifest()

	// --- Redis & Dedupe Store ---
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to parse REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), redisPingTimeout)
		err = redisClient.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			if cfg.IsProductionLike() {
				logger.Fatal("Redis connection failed", zap.Error(err))
			}
			logger.Warn("Redis unreachable, continuing without it", zap.Error(err))
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("Redis connected", zap.String("addr", opts.Addr))
		}
	}

	var store dedupe.Store
	if redisClient != nil {
		store = dedupe.NewRedisStore(redisClient, m.ID+":dedupe:")
	} else {
		store = dedupe.NewMemoryStore()
		logger.Warn("Using in-memory dedupe store, marks do not survive restarts")
	}

	// --- Rate Limiter ---
	var limiter ratelimit.Limiter
	if cfg.RateLimit > 0 {
		if redisClient != nil {
			limiter = ratelimit.NewRedisLimiter(redisClient, m.ID+":rl:", cfg.RateLimit, cfg.RateWindow)
		} else {
			limiter = ratelimit.NewLocalLimiter(cfg.RateLimit, cfg.RateWindow)
		}
	}

	// --- NATS JetStream ---
	var natsClient *natsclient.Client
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.NewClient(cfg.NATSURL, logger)
		if err != nil {
			if cfg.IsProductionLike() {
				logger.Fatal("NATS initialization failed", zap.Error(err))
			}
			logger.Warn("NATS unavailable, events will be logged only", zap.Error(err))
			natsClient = nil
		} else {
			defer natsClient.Close()
			if err := natsClient.ProvisionStreams(); err != nil {
				logger.Fatal("NATS stream provisioning failed", zap.Error(err))
			}
			logger.Info("NATS JetStream ready")
		}
	}

	// --- Capability Registry ---
	var eventHandler connector.Handler
	if natsClient != nil {
		eventHandler = events.NewPublisher(natsClient.JS, logger).Handler()
	} else {
		eventHandler = events.LogOnlyHandler()
	}
	registry := connector.NewRegistry()
	for _, capability := range m.ActiveCapabilities() {
		registry.Register(capability, eventHandler)
	}

	// --- Inbound Runtime ---
	rt, err := runtime.New(runtime.Config{
		Manifest:    m,
		Logger:      logger,
		Metrics:     metrics,
		Parser:      instagram.NewParser(cfg.TenantMap),
		Registry:    registry,
		Store:       store,
		Verifier:    signature.NewVerifier(cfg.WebhookSecret),
		Limiter:     limiter,
		VerifyToken: cfg.VerifyToken,
		DedupeTTL:   cfg.DedupeTTL,
	})
	if err != nil {
		logger.Fatal("Inbound runtime wiring failed", zap.Error(err))
	}

	// --- Outbound Dispatcher ---
	var processor *dispatcher.Processor
	switch {
	case cfg.AccessToken == "":
		logger.Info("Outbound dispatch disabled, no access token configured")
	case redisClient == nil:
		logger.Warn("Outbound dispatch disabled, Redis is required for intent dedupe")
	default:
		failMode, err := dedupe.ParseFailMode(cfg.OutboundFailMode)
		if err != nil {
			logger.Fatal("Invalid DEDUPE_FAIL_MODE_OUTBOUND", zap.Error(err))
		}
		graph, err := client.New(client.Config{
			BaseURL:     cfg.GraphBaseURL,
			APIVersion:  cfg.GraphAPIVersion,
			AccessToken: cfg.AccessToken,
			PageID:      cfg.ScopeID,
			Logger:      logger,
		})
		if err != nil {
			logger.Fatal("Graph client wiring failed", zap.Error(err))
		}
		processor, err = dispatcher.New(dispatcher.Config{
			Connector: m.ID,
			Logger:    logger,
			Metrics:   metrics,
			Store:     store,
			Sender:    graph,
			FailMode:  failMode,
			TTL:       cfg.DedupeTTL,
			PageID:    cfg.ScopeID,
		})
		if err != nil {
			logger.Fatal("Outbound dispatcher wiring failed", zap.Error(err))
		}
	}

	// --- Intent Consumer ---
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()

	if natsClient != nil && processor != nil {
		intentConsumer := consumer.NewIntentConsumer(natsClient, processor, m.ID, logger)
		if err := intentConsumer.Start(consumerCtx); err != nil {
			logger.Fatal("Intent consumer start failed", zap.Error(err))
		}
		logger.Info("Intent consumer started", zap.String("provider", m.ID))
	}

	// --- HTTP Server ---
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware(serviceName))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request",
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	handler.NewHealthHandler(m).Register(e)
	handler.NewWebhookHandler(rt, logger).Register(e)

	// The staging route never exists in production; unregistered paths fall
	// through to echo's 404.
	if cfg.Env != config.EnvProduction && cfg.StagingOutboundToken != "" && processor != nil {
		handler.NewOutboundHandler(processor, logger, cfg.StagingOutboundToken).Register(e)
		logger.Info("Staging outbound route registered")
	}

	go func() {
		logger.Info("instagram-connector listening", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failure", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("Initiating graceful shutdown")

	consumerCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Echo shutdown error", zap.Error(err))
	}
	logger.Info("instagram-connector shut down cleanly")
}

// bootFatal reports errors that occur before the real logger exists.
func bootFatal(msg string, err error) {
	boot, _ := zap.NewProduction()
	defer boot.Sync()
	boot.Fatal(msg, zap.Error(err))
}

func vaultPath(cfg *config.Config) string {
	if cfg.VaultSecretPath != "" {
		return cfg.VaultSecretPath
	}
	return "secret/data/chatmesh/" + serviceName
}

func overlayVaultSecrets(cfg *config.Config) error {
	manager, err := config.NewSecretManager(cfg.VaultAddr, cfg.VaultToken)
	if err != nil {
		return err
	}
	secrets, err := manager.GetKV2(vaultPath(cfg))
	if err != nil {
		return err
	}
	cfg.ApplySecrets(secrets)
	return nil
}
