package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	billingapp "github.com/tenantcore/backend/internal/application/billing"
	"github.com/tenantcore/backend/internal/application/tenancy"
	"github.com/tenantcore/backend/internal/domain/billing"
	"github.com/tenantcore/backend/internal/infrastructure/auth"
	infrabilling "github.com/tenantcore/backend/internal/infrastructure/billing"
	"github.com/tenantcore/backend/internal/infrastructure/cache"
	"github.com/tenantcore/backend/internal/infrastructure/config"
	"github.com/tenantcore/backend/internal/infrastructure/event"
	"github.com/tenantcore/backend/internal/infrastructure/logger"
	"github.com/tenantcore/backend/internal/infrastructure/persistence"
	"github.com/tenantcore/backend/internal/infrastructure/scheduler"
	"github.com/tenantcore/backend/internal/infrastructure/telemetry"
	"github.com/tenantcore/backend/internal/interfaces/http/handler"
	"github.com/tenantcore/backend/internal/interfaces/http/middleware"
	"github.com/tenantcore/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const backlogCollectionInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Fields:     map[string]any{"service": cfg.App.Name},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting tenant core",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("base_domain", cfg.Tenancy.BaseDomain),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tp, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.OpenDatabase(ctx, &cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	tenantRepo := persistence.NewGormTenantRepository(db.DB)
	domainRepo := persistence.NewGormDomainRepository(db.DB)
	membershipRepo := persistence.NewGormMembershipRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	provisioner := persistence.NewGormTenantProvisioner(db.DB)
	binder := persistence.NewGormSchemaScope(db.DB)

	// Metrics
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:           mp.Meter("tenantcore"),
		Logger:          log,
		BacklogProvider: ledgerRepo,
	})
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}
	businessMetrics.StartPeriodicCollection(ctx, backlogCollectionInterval)

	// Schema registry and its cache
	cacheFactory := cache.NewRegistryCacheFactory(cfg.Redis, cfg.Tenancy, cache.WithLogger(log))
	snapshotCache, err := cacheFactory.CreateSnapshotCache()
	if err != nil {
		log.Fatal("Failed to create registry cache", zap.Error(err))
	}
	invalidator, err := cacheFactory.CreateInvalidator()
	if err != nil {
		log.Fatal("Failed to create registry invalidator", zap.Error(err))
	}

	registry := tenancy.NewRegistry(tenancy.RegistryConfig{
		Tenants:     tenantRepo,
		Domains:     domainRepo,
		Cache:       snapshotCache,
		BaseDomain:  cfg.Tenancy.BaseDomain,
		FillTimeout: cfg.Tenancy.ResolveTimeout,
		Metrics:     businessMetrics,
		Logger:      log,
	})

	eventBus := event.NewInMemoryEventBus(log)
	var fanout tenancy.InvalidationFanout
	if invalidator != nil {
		fanout = invalidator
		go func() {
			if err := invalidator.Subscribe(ctx, registry.Apply); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Registry invalidation subscription ended", zap.Error(err))
			}
		}()
	}
	invalidationHandler := tenancy.NewCacheInvalidationHandler(registry, fanout, log)
	eventBus.Subscribe(invalidationHandler, invalidationHandler.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Tenancy services
	resolver := tenancy.NewResolver(tenancy.ResolverConfig{
		Directory:         registry,
		Memberships:       membershipRepo,
		SessionResolution: cfg.Tenancy.SessionResolution,
		Timeout:           cfg.Tenancy.ResolveTimeout,
		Metrics:           businessMetrics,
		Logger:            log,
	})
	tenancyService := tenancy.NewService(resolver, binder)
	provisioningService := tenancy.NewProvisioningService(tenantRepo, provisioner, eventBus, log)
	adminService := tenancy.NewAdminService(tenantRepo, domainRepo, membershipRepo, provisioner, eventBus, log)

	// Billing
	mapper, err := billing.NewPlanRoleMapper(planCatalog(cfg.Billing))
	if err != nil {
		log.Fatal("Invalid plan catalog", zap.Error(err))
	}
	processor := billingapp.NewProcessor(billingapp.ProcessorConfig{
		Ledger:        ledgerRepo,
		Tenants:       registry,
		Binder:        binder,
		Mapper:        mapper,
		ApplyTimeout:  cfg.Billing.ApplyTimeout,
		LedgerTimeout: cfg.Billing.LedgerTimeout,
		Metrics:       businessMetrics,
		Logger:        log,
	})
	reconciliation := billingapp.NewReconciliationService(ledgerRepo, processor, log)
	subscriptionQuery := billingapp.NewSubscriptionQueryService()

	sweepScheduler := scheduler.NewLedgerSweepScheduler(reconciliation, log, scheduler.LedgerSweepSchedulerConfig{
		Enabled:   cfg.Billing.SweepEnabled,
		Interval:  cfg.Billing.SweepInterval,
		MinAge:    cfg.Billing.SweepMinAge,
		BatchSize: cfg.Billing.SweepBatchSize,
	})
	if err := sweepScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start ledger sweep scheduler", zap.Error(err))
	}

	verifier, err := infrabilling.NewSignatureVerifier(cfg.Billing.WebhookSecret, cfg.Billing.SignatureTolerance)
	if err != nil {
		log.Fatal("Invalid billing webhook configuration", zap.Error(err))
	}

	// Authentication
	jwtService := auth.NewJWTService(cfg.JWT)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = redisClient.Close()
	}()
	var revocations auth.RevocationList = auth.NewRedisRevocationList(redisClient)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, session revocations are local to this instance", zap.Error(err))
		revocations = auth.NewInMemoryRevocationList()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, "/health", "/ready"))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanDecorator())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: mp,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Revocations = revocations
	jwtConfig.Logger = log

	apiRouter := router.Mount(engine, router.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"database": db,
			"redis": handler.PingerFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		}),
		Tenant:       handler.NewTenantHandler(provisioningService, tenancyService),
		Subscription: handler.NewSubscriptionHandler(subscriptionQuery),
		Webhook:      handler.NewBillingWebhookHandler(processor, verifier, cfg.Billing.MaxPayloadBytes),
		Admin:        handler.NewAdminHandler(adminService, reconciliation, revocations, jwtService.GetAccessTokenExpiration()),
	}, router.Guards{
		Authenticate: middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
		BindTenant: middleware.TenantBinding(middleware.TenantBindingConfig{
			Binder: tenancyService,
			Logger: log,
		}),
		RequireAdmin: middleware.RequirePlatformAdmin(),
	}, router.WithAPIVersion("v1"))
	for _, rt := range apiRouter.Routes() {
		log.Debug("Route mounted", zap.String("method", rt.Method), zap.String("path", rt.Path), zap.String("access", rt.Access))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweepScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Ledger sweep scheduler did not stop cleanly", zap.Error(err))
	}
	businessMetrics.Stop()
	_ = eventBus.Stop(shutdownCtx)
	stop()
	if invalidator != nil {
		_ = invalidator.Close()
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// planCatalog builds the plan catalog from configuration
func planCatalog(cfg config.BillingConfig) billing.PlanCatalog {
	catalog := billing.PlanCatalog{
		Offered: make([]string, 0, len(cfg.OfferedPlans)),
		Plans:   make(map[string]billing.Plan, len(cfg.Plans)),
	}
	for _, code := range cfg.OfferedPlans {
		catalog.Offered = append(catalog.Offered, billing.NormalizePlanCode(code))
	}
	for code, roles := range cfg.Plans {
		code = billing.NormalizePlanCode(code)
		catalog.Plans[code] = billing.Plan{Code: code, RolesOnActivation: roles}
	}
	return catalog
}
