package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/dailyquest/api/handler"
	"github.com/fastygo/dailyquest/domain"
	"github.com/fastygo/dailyquest/internal/bootstrap"
	"github.com/fastygo/dailyquest/internal/config"
	"github.com/fastygo/dailyquest/internal/infrastructure/monitor"
	"github.com/fastygo/dailyquest/internal/infrastructure/outbox"
	redisInfra "github.com/fastygo/dailyquest/internal/infrastructure/redis"
	"github.com/fastygo/dailyquest/internal/metrics"
	"github.com/fastygo/dailyquest/internal/middleware"
	"github.com/fastygo/dailyquest/internal/router"
	"github.com/fastygo/dailyquest/internal/services"
	"github.com/fastygo/dailyquest/internal/services/lifecycle"
	"github.com/fastygo/dailyquest/internal/services/notify"
	"github.com/fastygo/dailyquest/pkg/httpcontext"
	"github.com/fastygo/dailyquest/pkg/logger"
	allocatorUC "github.com/fastygo/dailyquest/usecase/allocator"
	attemptUC "github.com/fastygo/dailyquest/usecase/attempt"
	profileUC "github.com/fastygo/dailyquest/usecase/profile"
	settlementUC "github.com/fastygo/dailyquest/usecase/settlement"
	validationUC "github.com/fastygo/dailyquest/usecase/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Service:     cfg.AppName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.JWT.Secret == "" {
		zapLogger.Fatal("JWT_SECRET is required")
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	store, closeStore, err := bootstrap.OpenStore(appCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("store unavailable", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	manager.Register(cfg.Store.Driver, lifecycle.ShutdownFunc(closeStore))

	var redisClient *goRedis.Client
	if cfg.Notify.Enabled {
		redisClient, err = redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "events", cfg.Outbox.MaxSize)
	if err != nil {
		zapLogger.Fatal("failed to open outbox", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	mon := monitor.New(cfg.Store.Driver, store, redisClient, outboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	appMetrics := metrics.New()

	var publisher notify.Publisher = notify.NewLogPublisher(zapLogger)
	if redisClient != nil {
		publisher = notify.NewRedisPublisher(redisClient, cfg.Notify.Channel)
	}

	outboxProcessor := services.NewOutboxProcessor(
		outboxStore,
		mon,
		publisher,
		appMetrics,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Outbox.SyncInterval,
			BatchSize:  50,
			MaxRetries: cfg.Outbox.MaxRetry,
			Retention:  cfg.Outbox.Retention,
		},
	)
	outboxProcessor.Start()
	manager.Register("outbox_processor", func(ctx context.Context) error {
		outboxProcessor.Stop(ctx)
		return nil
	})

	dispatcher := notify.NewDispatcher(publisher, outboxStore, appMetrics, notify.Config{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
	}, zapLogger)
	dispatcher.Start()
	manager.Register("dispatcher", func(ctx context.Context) error {
		dispatcher.Stop(ctx)
		return nil
	})

	proofs, err := bootstrap.OpenProofs(appCtx, cfg)
	if err != nil {
		zapLogger.Fatal("proof storage unavailable", zap.String("driver", cfg.Proofs.Driver), zap.Error(err))
	}

	appMetrics.Gauge("outbox", "parked_events", "Events waiting in the outbox", func() float64 {
		return float64(outboxProcessor.Size())
	})
	appMetrics.Gauge("proofs", "url_cache_entries", "Resolved proof URLs held in memory", func() float64 {
		return float64(proofs.Storage.Len())
	})

	clock := domain.SystemClock{Location: cfg.Rules.Location}
	rules := cfg.Rules.Domain()

	settlement := settlementUC.New(store.Users(), store.Attempts(), dispatcher, appMetrics, clock, rules, zapLogger)
	allocator := allocatorUC.New(allocatorUC.Deps{
		Users:    store.Users(),
		Quests:   store.Quests(),
		Attempts: store.Attempts(),
		Proofs:   proofs.Storage,
		Clock:    clock,
		Recorder: appMetrics,
		Rules:    rules,
	}, zapLogger)
	attempts := attemptUC.New(store.Attempts(), proofs.Storage, clock, zapLogger)
	validation := validationUC.New(validationUC.Deps{
		Users:      store.Users(),
		Attempts:   store.Attempts(),
		Settlement: settlement,
		Proofs:     proofs.Storage,
		Notifier:   dispatcher,
		Recorder:   appMetrics,
		Clock:      clock,
		Rules:      rules,
	}, zapLogger)
	profile := profileUC.New(store.Users(), clock, rules, zapLogger)

	if cfg.Sweep.Enabled {
		sweeper, err := services.NewSettlementSweeper(settlement, cfg.Sweep.Schedule, cfg.Sweep.Timeout, zapLogger)
		if err != nil {
			zapLogger.Fatal("invalid sweep schedule", zap.String("schedule", cfg.Sweep.Schedule), zap.Error(err))
		}
		sweeper.Start()
		manager.Register("settlement_sweeper", func(ctx context.Context) error {
			sweeper.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Quest:     apiHandler.NewQuestHandler(allocator, attempts, cfg.HTTP.MaxUploadBytes, ctxAdapter, zapLogger),
		Community: apiHandler.NewCommunityHandler(validation, ctxAdapter, zapLogger),
		Profile:   apiHandler.NewProfileHandler(profile, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = appMetrics.Handler()
	}

	var opts router.Options
	if proofs.LocalDir != "" {
		if abs, err := filepath.Abs(proofs.LocalDir); err == nil {
			opts.UploadsDir = abs
		} else {
			opts.UploadsDir = proofs.LocalDir
		}
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware, opts)

	var handler fasthttp.RequestHandler = r.Handler
	if cfg.HTTP.EnableMetrics {
		handler = appMetrics.Middleware(handler)
	}

	server := &fasthttp.Server{
		Handler:            handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		MaxRequestBodySize: cfg.HTTP.MaxUploadBytes + 1<<20,
		Name:               cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("store", cfg.Store.Driver),
			zap.String("proofs", cfg.Proofs.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
