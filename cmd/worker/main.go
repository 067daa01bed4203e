package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-engine/internal/config"
	"github.com/noah-isme/checkout-engine/internal/lock"
	"github.com/noah-isme/checkout-engine/internal/obs"
	"github.com/noah-isme/checkout-engine/internal/queue"
	"github.com/noah-isme/checkout-engine/internal/resilience"
	"github.com/noah-isme/checkout-engine/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	if cfg.TaxIDVerifierURL == "" {
		logger.Fatal().Msg("TAX_ID_VERIFIER_URL is required for the reverification worker")
	}
	checker := &tax.ExemptionChecker{
		Verifier: &tax.HTTPVerifier{
			BaseURL: cfg.TaxIDVerifierURL,
			HTTP: &resilience.HTTPClient{
				Client:      &http.Client{},
				Breaker:     resilience.NewBreaker(cfg.BreakerMinReqs, cfg.BreakerFailRatio, cfg.BreakerOpenFor).WithTarget("tax-id-verifier").WithLogger(logger),
				BaseBackoff: 100 * time.Millisecond,
				MaxAttempts: 2,
				Timeout:     cfg.VerifierTimeout,
				Target:      "tax-id-verifier",
				Logger:      &logger,
			},
		},
		Cache:    redisClient,
		CacheTTL: cfg.TaxIDCacheTTL,
		Timeout:  cfg.VerifierTimeout,
		Logger:   &logger,
	}

	reverifier := queue.TaxIDReverifier{Checker: checker, Logger: logger}
	locker := lock.Locker{R: redisClient, RetryBackoff: 50 * time.Millisecond}
	lockTTL := envDuration("WORKER_LOCK_TTL", 30*time.Second)

	reverifyWorker := queue.Worker{
		R:                 redisClient,
		Prefix:            envOrDefault("QUEUE_REDIS_PREFIX", "checkout"),
		Kind:              queue.KindTaxIDReverify,
		Concurrency:       envInt("QUEUE_CONCURRENCY", 4),
		VisibilityTimeout: envDuration("QUEUE_VISIBILITY_TIMEOUT", 30*time.Second),
		RetryBase:         envDuration("QUEUE_BACKOFF_BASE", 5*time.Second),
		RetryJitter:       0.2,
		SoftDeadline:      envDuration("WORKER_JOB_SOFT_DEADLINE", 20*time.Second),
		HeartbeatInterval: envDuration("WORKER_HEARTBEAT_INTERVAL", 10*time.Second),
		Store:             queue.NewStore(pool),
		Logger:            &logger,
		Handler: func(jobCtx context.Context, task queue.Task) error {
			// One verification per purchase at a time; a replayed task must
			// not race an in-flight one.
			key := "reverify:" + lockKey(task)
			return locker.WithLock(jobCtx, key, lockTTL, func(lockCtx context.Context) error {
				return reverifier.Handle(lockCtx, task)
			})
		},
	}

	logger.Info().Str("kind", queue.KindTaxIDReverify).Msg("worker starting")
	if err := reverifyWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

// lockKey scopes the lock to the purchase when the payload decodes, falling
// back to the dedup key.
func lockKey(task queue.Task) string {
	var p queue.TaxIDReverifyPayload
	if err := json.Unmarshal(task.Payload, &p); err == nil && p.PurchaseID != "" {
		return p.PurchaseID
	}
	return task.IdempotencyKey
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "checkout-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
