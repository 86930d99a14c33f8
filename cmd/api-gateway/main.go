package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/essay-review-api/api/swagger"
	"github.com/noah-isme/essay-review-api/internal/handler"
	"github.com/noah-isme/essay-review-api/internal/repository"
	"github.com/noah-isme/essay-review-api/internal/repository/inmem"
	"github.com/noah-isme/essay-review-api/internal/service"
	"github.com/noah-isme/essay-review-api/pkg/analyzer"
	"github.com/noah-isme/essay-review-api/pkg/cache"
	"github.com/noah-isme/essay-review-api/pkg/config"
	"github.com/noah-isme/essay-review-api/pkg/database"
	"github.com/noah-isme/essay-review-api/pkg/events"
	"github.com/noah-isme/essay-review-api/pkg/jobs"
	"github.com/noah-isme/essay-review-api/pkg/logger"
)

// @title Essay Review API
// @version 1.0.0
// @description Order lifecycle and teacher capacity admission for essay reviews
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.ReadinessCheck{}

	stores, db, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open storage", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
		checks["database"] = db.PingContext
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	publisher, err := events.Connect(cfg.NATS.URL, cfg.NATS.Subject, logr)
	if err != nil {
		logr.Warn("nats unavailable, order events disabled", zap.Error(err))
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	metrics := service.NewMetricsService()
	app := buildServices(cfg, stores, redisClient, publisher, metrics, logr)

	app.queue.Start(ctx)
	defer app.queue.Stop()
	app.sweeper.Start(ctx)
	defer app.sweeper.Stop()

	r := newRouter(cfg, app, metrics, checks, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.Stores, *sqlx.DB, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logr.Warn("using in-memory storage, data is lost on restart")
		mem := inmem.NewDB(inmem.DefaultCatalog())
		return service.Stores{
			Orders:   inmem.NewOrderRepository(mem),
			Catalog:  inmem.NewCatalogRepository(mem),
			Capacity: inmem.NewCapacityRepository(mem),
			Payments: inmem.NewPaymentRepository(mem),
			Results:  inmem.NewResultRepository(mem),
		}, nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return service.Stores{}, nil, err
	}
	if cfg.Migrations.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			_ = db.Close()
			return service.Stores{}, nil, err
		}
	}
	return service.Stores{
		Orders:   repository.NewOrderRepository(db),
		Catalog:  repository.NewCatalogRepository(db),
		Capacity: repository.NewCapacityRepository(db),
		Payments: repository.NewPaymentRepository(db),
		Results:  repository.NewResultRepository(db),
	}, db, nil
}

type application struct {
	tokens   *service.TokenService
	catalog  *service.CatalogService
	capacity *service.CapacityService
	payments *service.PaymentService
	orders   *service.OrderService
	queue    *jobs.Queue
	sweeper  *service.ExpirySweeper
}

func buildServices(cfg *config.Config, stores service.Stores, redisClient *redis.Client, publisher events.Publisher, metrics *service.MetricsService, logr *zap.Logger) *application {
	cacheRepo := repository.NewCacheRepository(redisClient, "essay", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, redisClient != nil)

	catalog := service.NewCatalogService(stores.Catalog, cacheSvc, cfg.Catalog.CacheTTL, logr)
	capacity := service.NewCapacityService(stores.Capacity, catalog, cacheSvc, metrics, service.CapacityConfig{
		MaxActive: cfg.Orders.MaxActivePerTeacher,
		HintTTL:   cfg.Orders.CapacityHintTTL,
	}, logr)
	payments := service.NewPaymentService(stores.Payments, metrics, logr)
	results := service.NewResultService(stores.Results, catalog, logr)

	analysis := service.NewAnalysisService(newAnalyzer(cfg, metrics, logr), stores.Orders, logr)
	queue := jobs.NewQueue("analysis", analysis.Handle, jobs.QueueConfig{
		Workers:    cfg.Analyzer.Workers,
		MaxRetries: cfg.Analyzer.Retries,
		RetryDelay: cfg.Analyzer.RetryDelay,
		Logger:     logr,
	})
	queue.OnExhausted = analysis.Exhausted
	analysis.Attach(queue)

	orders := service.NewOrderService(service.OrderServiceDeps{
		Store:     stores.Orders,
		Catalog:   catalog,
		Capacity:  capacity,
		Payments:  payments,
		Results:   results,
		Analysis:  analysis,
		Exporter:  service.NewExportService(nil, nil),
		Publisher: publisher,
		Deadlines: service.NewDeadlinePolicy(cfg.Orders.StandardTurnaround, cfg.Orders.GracePeriod),
		Metrics:   metrics,
		Logger:    logr,
	})

	return &application{
		tokens: service.NewTokenService(service.TokenConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		}),
		catalog:  catalog,
		capacity: capacity,
		payments: payments,
		orders:   orders,
		queue:    queue,
		sweeper:  service.NewExpirySweeper(orders, capacity, metrics, cfg.Orders.SweepInterval, logr),
	}
}

func newAnalyzer(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) analyzer.Analyzer {
	if !cfg.Analyzer.Enabled || cfg.Analyzer.OpenAIKey == "" {
		return analyzer.KeywordAnalyzer{MaxKeywords: 8}
	}
	a, err := analyzer.NewOpenAIAnalyzer(analyzer.OpenAIConfig{
		APIKey:     cfg.Analyzer.OpenAIKey,
		Model:      cfg.Analyzer.Model,
		Registerer: metrics.Registry(),
		Logger:     logr,
	})
	if err != nil {
		logr.Warn("openai analyzer unavailable, using keyword analyzer", zap.Error(err))
		return analyzer.KeywordAnalyzer{MaxKeywords: 8}
	}
	return a
}
