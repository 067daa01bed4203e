package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/checkout-engine/internal/app"
	"github.com/noah-isme/checkout-engine/internal/catalog"
	"github.com/noah-isme/checkout-engine/internal/checkout"
	"github.com/noah-isme/checkout-engine/internal/common"
	"github.com/noah-isme/checkout-engine/internal/config"
	"github.com/noah-isme/checkout-engine/internal/events"
	"github.com/noah-isme/checkout-engine/internal/fees"
	"github.com/noah-isme/checkout-engine/internal/geo"
	"github.com/noah-isme/checkout-engine/internal/health"
	"github.com/noah-isme/checkout-engine/internal/obs"
	"github.com/noah-isme/checkout-engine/internal/ppp"
	"github.com/noah-isme/checkout-engine/internal/queue"
	"github.com/noah-isme/checkout-engine/internal/quote"
	"github.com/noah-isme/checkout-engine/internal/ratelimit"
	"github.com/noah-isme/checkout-engine/internal/repo"
	"github.com/noah-isme/checkout-engine/internal/resilience"
	"github.com/noah-isme/checkout-engine/internal/security"
	"github.com/noah-isme/checkout-engine/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "checkout")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "checkout-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if envBool("AUTO_MIGRATE", true) {
		source := envOrDefault("MIGRATIONS_SOURCE", "file://db/migrations")
		m, err := migrate.New(source, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("open migrations")
		}
		if err := app.RunMigrations(m); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "checkout-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	defaultFees := fees.Schedule{
		BaseBps:             cfg.FeeBaseBps,
		BaseFixedCents:      cfg.FeeBaseFixed,
		ProcessorBps:        cfg.FeeProcessorBps,
		ProcessorFixedCents: cfg.FeeProcessorFix,
		DiscoverBps:         cfg.FeeDiscoverBps,
	}

	rates, enabledCountries, err := (repo.TaxTables{Pool: pool}).Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load tax tables")
	}
	taxRegistry := tax.NewRegistry(rates, enabledCountries)
	logger.Info().Int("rates", len(rates)).Int("countries", len(enabledCountries)).Msg("tax tables loaded")

	factors, err := (repo.PPPFactors{Pool: pool}).Load(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("load purchasing power parity factors")
	}
	pppRegistry := ppp.NewRegistry(factors)

	var exemptions *tax.ExemptionChecker
	if cfg.TaxIDVerifierURL != "" {
		exemptions = &tax.ExemptionChecker{
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
	} else {
		logger.Warn().Msg("tax id verifier not configured, exemption ids will not be honoured")
	}

	var geoResolver geo.Resolver
	if cfg.GeoResolverURL != "" {
		geoResolver = geo.Cached{
			R:   redisClient,
			TTL: cfg.GeoCacheTTL,
			Next: &geo.HTTPResolver{
				BaseURL: cfg.GeoResolverURL,
				HTTP: &resilience.HTTPClient{
					Client:      &http.Client{},
					Breaker:     resilience.NewBreaker(cfg.BreakerMinReqs, cfg.BreakerFailRatio, cfg.BreakerOpenFor).WithTarget("geo-resolver").WithLogger(logger),
					BaseBackoff: 100 * time.Millisecond,
					MaxAttempts: 2,
					Timeout:     cfg.VerifierTimeout,
					Target:      "geo-resolver",
					Logger:      &logger,
				},
			},
		}
	}

	engine := &checkout.Engine{
		Catalog:    repo.Products{Pool: pool, Cache: catalog.NewCache(redisClient, cfg.ProductCacheTTL)},
		Offers:     repo.Offers{Pool: pool},
		Sellers:    repo.Sellers{Pool: pool, Defaults: defaultFees},
		Affiliates: repo.Affiliates{Pool: pool},
		PPP:        pppRegistry,
		Tax:        taxRegistry,
		Exemptions: exemptions,
		Geo:        geoResolver,
		Logger:     &logger,
	}

	bus := &events.Bus{Store: &events.PgStore{Pool: pool}}
	enqueuer := queue.Enqueuer{R: redisClient, Prefix: envOrDefault("QUEUE_REDIS_PREFIX", "checkout"), DedupTTL: cfg.CommitTTL}

	checkoutSvc := &checkout.Service{
		Engine: engine,
		Signer: quote.Signer{
			Secret: []byte(cfg.QuoteSigningSecret),
			TTL:    cfg.QuoteTokenTTL,
		},
		R:         redisClient,
		CommitTTL: cfg.CommitTTL,
		Events:    bus,
		Queue:     &enqueuer,
		Logger:    &logger,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	queueAdmin := &queue.AdminHandler{
		Store:             queue.NewStore(pool),
		Queue:             enqueuer,
		Logger:            logger,
		VisibilityTimeout: 30 * time.Second,
	}

	idem := common.Idem{R: redisClient, TTL: cfg.CommitTTL}
	quoteLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    clientIPKey,
			Window: time.Minute,
			Max:    int(cfg.QuoteRatePerMin),
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("rate limiter unavailable")
		},
	}
	limiterStore, err := app.NewLimiterStore(redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("init limiter store")
	}
	commitLimiter := ratelimit.Handler{
		Limiter: ratelimit.StoreLimiter{Store: limiterStore},
		Config: ratelimit.Config{
			Key:    clientIPKey,
			Window: time.Minute,
			Max:    int(cfg.CommitRatePerMin),
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("commit rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: envBool("SECURE_HEADERS", true)}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/v1", func(v chi.Router) {
		v.With(quoteLimiter.Middleware).Post("/quotes", checkoutHandler.Quote)
		v.With(commitLimiter.Middleware, idem.Middleware).Post("/quotes/commit", checkoutHandler.Commit)

		v.Route("/admin/queue", func(admin chi.Router) {
			admin.Use(requireAdminToken(envOrDefault("ADMIN_API_TOKEN", "")))
			admin.Get("/dlq", queueAdmin.ListDLQ)
			admin.Post("/dlq/{id}/replay", queueAdmin.ReplayDLQ)
			admin.Get("/stats", queueAdmin.Stats)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer drainCancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func clientIPKey(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return "quotes:" + host
}

func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin endpoints disabled", nil)
				return
			}
			supplied := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
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

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
