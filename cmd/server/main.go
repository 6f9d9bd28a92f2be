package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	verifactuapp "github.com/factuhub/backend/internal/application/verifactu"
	"github.com/factuhub/backend/internal/infrastructure/config"
	"github.com/factuhub/backend/internal/infrastructure/gateway"
	"github.com/factuhub/backend/internal/infrastructure/logger"
	"github.com/factuhub/backend/internal/infrastructure/persistence"
	"github.com/factuhub/backend/internal/infrastructure/signing"
	"github.com/factuhub/backend/internal/infrastructure/storage"
	"github.com/factuhub/backend/internal/interfaces/http/handler"
	"github.com/factuhub/backend/internal/interfaces/http/middleware"
	"github.com/factuhub/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting FactuHub compliance engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := verifactuapp.NewMetrics(registry)

	// Repositories
	entryRepo := persistence.NewGormRegistryEntryRepository(db.DB)
	configRepo := persistence.NewGormTenantConfigRepository(db.DB)
	eventRepo := persistence.NewGormTransmissionEventRepository(db.DB)
	certRepo := persistence.NewGormCertificateRepository(db.DB)

	// Blob storage for signed XML documents
	blobStore, err := storage.NewS3BlobStorage(&cfg.Storage)
	if err != nil {
		log.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := blobStore.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to ensure storage bucket", zap.Error(err))
		}
		cancel()
	}

	// Signing stack
	certStore, err := signing.NewCertificateStore(certRepo, cfg.Verifactu.SealSecret, log)
	if err != nil {
		log.Fatal("Failed to initialize certificate store", zap.Error(err))
	}
	xmlSigner := signing.NewXMLSigner()
	qrGenerator := signing.NewQRGenerator()

	// External gateways
	aeatGateway := gateway.NewAEATGateway(&cfg.Gateway, log)
	crmClient := gateway.NewCRMInvoiceClient(&cfg.Crm, log)

	clock := verifactuapp.SystemClock{}

	// Application services
	registryService := verifactuapp.NewRegistryService(
		entryRepo, configRepo, eventRepo, configRepo, certStore,
		xmlSigner, qrGenerator, blobStore, crmClient,
		clock, metrics, log,
	)

	monitor := verifactuapp.NewCertificateMonitor(
		verifactuapp.MonitorConfig{
			Enabled:       cfg.Verifactu.MonitorEnabled,
			CheckInterval: cfg.Verifactu.MonitorCheckInterval,
		},
		certRepo, clock, metrics, log,
	)
	if err := monitor.Start(context.Background()); err != nil {
		log.Fatal("Failed to start certificate monitor", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := monitor.Stop(ctx); err != nil {
			log.Error("Error stopping certificate monitor", zap.Error(err))
		}
	}()

	configService := verifactuapp.NewTenantConfigService(configRepo, certStore, monitor, clock, log)

	worker := verifactuapp.NewSubmissionWorker(
		verifactuapp.WorkerConfig{
			Enabled:              cfg.Verifactu.WorkerEnabled,
			TickInterval:         cfg.Verifactu.WorkerTickInterval,
			GatewayTimeout:       cfg.Gateway.Timeout,
			MaxConcurrentTenants: cfg.Verifactu.MaxConcurrentTenants,
			Backoff: verifactuapp.BackoffPolicy{
				Base:   cfg.Verifactu.BackoffBase,
				Factor: cfg.Verifactu.BackoffFactor,
				Cap:    cfg.Verifactu.BackoffCap,
			},
		},
		entryRepo, configRepo, eventRepo, aeatGateway, blobStore, monitor,
		clock, metrics, log,
	)
	if err := worker.Start(context.Background()); err != nil {
		log.Fatal("Failed to start submission worker", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := worker.Stop(ctx); err != nil {
			log.Error("Error stopping submission worker", zap.Error(err))
		}
	}()

	// HTTP layer
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	tenantConfig.SkipPaths = append(tenantConfig.SkipPaths, "/api/v1/system")
	engine.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Prometheus scrape endpoint, outside API versioning
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	systemHandler := handler.NewSystemHandler(db.DB, version)
	// Load balancer probe at the root, same handler as /api/v1/health
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(systemHandler)
	r.Register(handler.NewVerifactuHandler(registryService))
	r.Register(handler.NewTenantConfigHandler(configService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server stopped")
}
