package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/wyfcoding/volatility/internal/volatility/application"
	"github.com/wyfcoding/volatility/internal/volatility/domain"
	mysqlrepo "github.com/wyfcoding/volatility/internal/volatility/infrastructure/persistence/mysql"
	redisrepo "github.com/wyfcoding/volatility/internal/volatility/infrastructure/persistence/redis"
	"github.com/wyfcoding/volatility/internal/volatility/infrastructure/publisher"
	"github.com/wyfcoding/volatility/pkg/cache"
	"github.com/wyfcoding/volatility/pkg/config"
	"github.com/wyfcoding/volatility/pkg/db"
	"github.com/wyfcoding/volatility/pkg/logger"
	"github.com/wyfcoding/volatility/pkg/metrics"
	"github.com/wyfcoding/volatility/pkg/mq"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/volatility/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "connect db failed", "error", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(&mysqlrepo.PriceHistoryModel{}, &mysqlrepo.CalibrationModel{}); err != nil {
		logger.Fatal(ctx, "migrate db failed", "error", err)
	}

	// 4. Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "connect redis failed", "error", err)
	}
	defer redisCache.Close()

	// 5. Kafka (optional: events are best effort)
	var eventPublisher domain.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "create kafka producer failed", "error", err)
		}
		defer producer.Close()
		eventPublisher = publisher.NewKafkaEventPublisher(producer)
	}

	// 6. Metrics
	m := metrics.New(cfg.ServiceName)

	// 7. Domain & Application
	calibrator := domain.NewCalibrator(domain.CalibratorConfig{
		Window:    cfg.Calibration.Window,
		KappaMin:  cfg.Calibration.KappaMin,
		KappaMax:  cfg.Calibration.KappaMax,
		SigmaVMin: cfg.Calibration.SigmaVMin,
		SigmaVMax: cfg.Calibration.SigmaVMax,
	})
	builder := domain.NewSurfaceBuilder(domain.NewImpliedVolSolver(), cfg.Surface.Workers)

	historyRepo := mysqlrepo.NewPriceHistoryRepository(database.DB)
	calibrationRepo := mysqlrepo.NewCalibrationRepository(database)
	calibrationCache := redisrepo.NewCalibrationRedisRepository(
		redisCache,
		time.Duration(cfg.Calibration.CacheTTLSeconds)*time.Second,
	)

	appService := application.NewVolatilityService(
		historyRepo,
		calibrationRepo,
		calibrationCache,
		eventPublisher,
		calibrator,
		builder,
		m,
		cfg.Calibration.LookbackDays,
	)

	// 8. Run
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}

	g.Go(func() error {
		return runRefreshLoop(gctx, cfg, appService)
	})

	logger.Info(ctx, "Volatility service started",
		"symbols", cfg.Calibration.Symbols,
		"interval_seconds", cfg.Calibration.IntervalSeconds,
	)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Fatal(ctx, "service stopped with error", "error", err)
	}
	logger.Info(context.Background(), "Volatility service stopped")
}

// runRefreshLoop recalibrates every configured symbol and rebuilds its
// surface, immediately on startup and then on the configured interval.
func runRefreshLoop(ctx context.Context, cfg *config.Config, svc *application.VolatilityService) error {
	interval := time.Duration(cfg.Calibration.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refreshAll(ctx, cfg, svc)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refreshAll(ctx, cfg, svc)
		}
	}
}

func refreshAll(ctx context.Context, cfg *config.Config, svc *application.VolatilityService) {
	for _, symbol := range cfg.Calibration.Symbols {
		if ctx.Err() != nil {
			return
		}

		done := logger.LogDuration(ctx, "Symbol refresh finished", "symbol", symbol)
		calibration, surface, err := svc.RefreshSymbol(
			ctx,
			symbol,
			cfg.Market.RiskFreeRate,
			cfg.Market.DividendYield,
			cfg.Surface.StrikesPct,
			cfg.Surface.Expiries,
			cfg.Surface.NumPaths,
			cfg.Surface.Seed,
		)
		if err != nil {
			logger.Error(ctx, "Symbol refresh failed", "symbol", symbol, "error", err)
			continue
		}
		done()

		logger.Info(ctx, "Calibration fitted",
			"symbol", symbol,
			"v0", calibration.V0,
			"kappa", calibration.Kappa,
			"theta", calibration.Theta,
			"sigma_v", calibration.SigmaV,
			"rho", calibration.Rho,
			"feller_condition_met", calibration.FellerConditionMet,
			"clipped", calibration.Clipped,
		)
		logger.Info(ctx, "Surface rebuilt",
			"symbol", symbol,
			"expiries", len(surface.Expiries),
			"strikes", len(surface.StrikesPct),
			"diverged_cells", surface.DivergedCells,
		)
	}
}
