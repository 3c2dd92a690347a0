package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/slotwise/slotwise/libs/auth"
	"github.com/slotwise/slotwise/libs/config"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/libs/httpx"
	"github.com/slotwise/slotwise/libs/kafkax"
	otelx "github.com/slotwise/slotwise/libs/otel"
	"github.com/slotwise/slotwise/libs/runtime"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/cache"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/consumer"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/evaluator"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/grpcserver"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/handlers"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/inbox"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/metrics"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/migrations"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/snapshots"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultInvalidationTopics = "booking.appointment.created,booking.appointment.cancelled,billing.payment.updated,billing.subscription.updated,business.created,business.deleted"

func main() {
	service := config.String("SERVICE_NAME", "entitlements-service")
	port, err := config.Port("PORT", "8087")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9097")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	loc, err := config.Location("PLAN_LIMITS_TIMEZONE")
	if err != nil {
		panic(err)
	}

	if config.Bool("MIGRATE_ON_START", false) {
		if err := migrations.Up(dbURL); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, service)

	repo := storage.NewRepository(pool)
	eval := evaluator.New(repo, logger,
		evaluator.WithLocation(loc),
		evaluator.WithMetrics(m),
	)

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var rdb *redis.Client
	var snapshotCache snapshots.Cache
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		snapshotCache = cache.NewSnapshotCache(rdb, config.Seconds("SNAPSHOT_TTL_SECONDS", time.Minute), "entitlements:snapshot")
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	}
	svc := snapshots.New(eval, snapshotCache, logger, m)

	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		c := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topics:  config.List("KAFKA_INVALIDATION_TOPICS", defaultInvalidationTopics),
		}, consumer.InvalidationHandler(logger, svc, m))
		go c.Run(ctx)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	var jwksClient *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwksClient = auth.NewJWKSClient(url, config.Seconds("JWKS_CACHE_TTL_SECONDS", 5*time.Minute))
	}
	verifier := auth.NewVerifier(jwtSecret, jwksClient)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", metrics.Handler(registry))
	handlers.NewHandler(svc, logger).Register(mux, verifier)

	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	rateLimit := httpx.NewRateLimiter(limit, time.Minute).Middleware()
	if rdb != nil {
		rateLimit = httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "entitlements:rl").Middleware(logger, true)
	}

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		rateLimit,
		httpx.WithTimeout(config.Seconds("HTTP_HANDLER_TIMEOUT_SECONDS", 10*time.Second)),
	)
	handler = otelhttp.NewHandler(handler, "entitlements")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	grpcSrv := grpcserver.New(logger)
	if err := grpcSrv.Start(ctx, ":"+grpcPort); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	} else {
		grpcSrv.SetServing(true)
	}

	<-ctx.Done()
	grpcSrv.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
