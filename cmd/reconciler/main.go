// Command reconciler runs the billing/inventory reconciler: the ops HTTP
// server, the completion-signal websocket, the daily trigger and every
// queue consumer, in one process.
//
// @title                      Spend Reconciler Ops API
// @version                    1.0
// @description                Operator API for account setup, on-demand billing and inventory jobs, discrepancy review and queue inspection.
// @BasePath                   /
// @securityDefinitions.apikey AdminToken
// @in                         header
// @name                       X-Admin-Token
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-spend-reconciler/internal/config"
	"github.com/tbourn/go-spend-reconciler/internal/domain"
	httpapi "github.com/tbourn/go-spend-reconciler/internal/http"
	"github.com/tbourn/go-spend-reconciler/internal/observability"
	"github.com/tbourn/go-spend-reconciler/internal/provider"
	"github.com/tbourn/go-spend-reconciler/internal/provider/awsprovider"
	"github.com/tbourn/go-spend-reconciler/internal/provider/mockprovider"
	"github.com/tbourn/go-spend-reconciler/internal/queue"
	"github.com/tbourn/go-spend-reconciler/internal/repo"
	"github.com/tbourn/go-spend-reconciler/internal/services"
	sig "github.com/tbourn/go-spend-reconciler/internal/signal"
	"github.com/tbourn/go-spend-reconciler/internal/sysutil"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	broker, data := cloudProvider(ctx, cfg.Provider)
	data = provider.NewThrottled(data, cfg.Provider.RPS, cfg.Provider.Burst)

	q := queue.New(db, queue.DBSink{DB: db}, map[string]queue.RetryPolicy{
		domain.QueueCostCollection:     policy(cfg.CostQueue),
		domain.QueueInventoryScan:      policy(cfg.InventoryQueue),
		domain.QueueDiscrepancyAnalyze: policy(cfg.AnalysisQueue),
		domain.QueueMetaScheduler:      policy(cfg.MetaQueue),
	})

	bus := sig.NewBus(16)
	hub := sig.NewHub(bus, cfg.JWTSecret, cfg.CORS.AllowedOrigins)

	costs := services.NewCostCollector(db, broker, data)
	inventory := services.NewInventoryScanner(db, broker, data, q, cfg.Provider.RegionParallelism)
	inventory.DailyIdempotency = cfg.InventoryDailyIdempotency
	engine := services.NewEngine(db, bus)

	c := cron.New(cron.WithLocation(time.UTC))
	scheduler := services.NewScheduler(db, q, c, cfg.Schedule.Cron, cfg.Schedule.PageSize)
	if err := scheduler.RegisterSchedules(ctx); err != nil {
		log.Fatal().Err(err).Msg("register schedules failed")
	}
	c.Start()

	// consumers
	workCtx, stopWork := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	consume := func(name string, qc config.QueueConfig, h queue.Handler) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			_ = q.Consume(workCtx, name, queue.ConsumerOptions{
				Concurrency:  qc.Concurrency,
				PollInterval: cfg.PollInterval,
				Lease:        cfg.Lease,
			}, h)
		}()
	}
	consume(domain.QueueMetaScheduler, cfg.MetaQueue, scheduler.Handle)
	consume(domain.QueueCostCollection, cfg.CostQueue, costs.Handle)
	consume(domain.QueueInventoryScan, cfg.InventoryQueue, inventory.Handle)
	consume(domain.QueueDiscrepancyAnalyze, cfg.AnalysisQueue, engine.Handle)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:  db,
		Ops: services.NewDispatcher(db, q, inventory),
		Hub: hub,
		Ping: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", cfg.Provider.Mode).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	<-c.Stop().Done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	// in-flight jobs are released without charging the attempt
	stopWork()
	workers.Wait()

	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("bye")
}

func policy(qc config.QueueConfig) queue.RetryPolicy {
	return queue.RetryPolicy{Attempts: qc.Attempts, Backoff: qc.Backoff}
}

// cloudProvider selects the provider once at startup.
func cloudProvider(ctx context.Context, pc config.ProviderConfig) (provider.CredentialBroker, provider.CloudDataProvider) {
	if pc.Mode == config.ProviderMock {
		log.Warn().Msg("provider mode is mock: serving fixture data")
		mp := mockprovider.Provider{}
		return mp, mp
	}
	p, err := awsprovider.New(ctx, pc.Region)
	if err != nil {
		log.Fatal().Err(err).Msg("aws provider init failed")
	}
	return p, p
}
