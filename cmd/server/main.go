package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sifan077/utmlink/config"
	appmodel "github.com/sifan077/utmlink/internal/app/model"
	apprepository "github.com/sifan077/utmlink/internal/app/repository"
	appserver "github.com/sifan077/utmlink/internal/app/server"
	appservice "github.com/sifan077/utmlink/internal/app/service"
	"github.com/sifan077/utmlink/internal/app/urlguard"
	"github.com/sifan077/utmlink/internal/http/middleware"
	"github.com/sifan077/utmlink/internal/http/util"
	"github.com/sifan077/utmlink/internal/infra/logger"
	infraNATS "github.com/sifan077/utmlink/internal/infra/nats"
	infraPostgres "github.com/sifan077/utmlink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/utmlink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/utmlink/internal/infra/redis"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	isDev := os.Getenv("APP_ENV") != "production"
	log := logger.MustInit(logger.Config{
		Development: isDev,
		Level:       os.Getenv("LOG_LEVEL"),
	})
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	configured, err := logger.Init(logger.FromConfig(cfg.Log, isDev))
	if err != nil {
		log.Fatal("Failed to configure logger", zap.Error(err))
	}
	log = configured

	log.Info("Configuration loaded successfully",
		zap.String("postgres_host", cfg.Postgres.Host),
		zap.Int("postgres_port", cfg.Postgres.Port),
		zap.String("postgres_db", cfg.Postgres.Database),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Bool("nats_enabled", cfg.NATS.Enabled),
		zap.String("base_url", cfg.Shortener.BaseURL),
		zap.String("ip_policy", cfg.Shortener.IPPolicy),
	)

	// Relational state: links, campaigns, templates.
	gormDB, err := infraPostgres.NewGorm(cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to open GORM connection", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal("Failed to access underlying SQL DB", zap.Error(err))
	}
	defer sqlDB.Close()

	if err := infraPostgres.AutoMigrate(ctx, gormDB,
		&appmodel.Campaign{},
		&appmodel.Template{},
		&appmodel.Link{},
		&appmodel.ClickEvent{},
	); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Append-only click log goes through pgx directly.
	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()
	log.Info("Connected to Postgres successfully")

	codeFilter := apprepository.NewCodeFilter(apprepository.NewLinkRepository(gormDB), cfg.Shortener.BloomCapacity)
	warmed, err := codeFilter.Warm(ctx)
	if err != nil {
		log.Fatal("Failed to warm short code filter", zap.Error(err))
	}
	log.Info("Short code filter warmed", zap.Int("codes", warmed))

	clickRepo := apprepository.NewClickEventRepository(pool)
	campaignRepo := apprepository.NewCampaignRepository(gormDB)
	templateRepo := apprepository.NewTemplateRepository(gormDB)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := infraPrometheus.NewMetrics(reg)

	promServer := infraPrometheus.NewServer(cfg.Prometheus, reg)
	go func() {
		log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
		if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
		}
	}()
	defer func() {
		if err := promServer.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Failed to close Prometheus server", zap.Error(err))
		}
	}()

	blocked := urlguard.ParseBlocklist(cfg.Shortener.BlockedDomains)
	limiter := appservice.NewRateLimiter(codeFilter, func(context.Context) (int, error) {
		return cfg.Shortener.CreationLimit()
	}, log.Named("rate_limiter"))

	// Without NATS the unique-visitor rule runs inline after each click.
	var (
		notifier appservice.ClickNotifier
		js       nats.JetStreamContext
	)
	if cfg.NATS.Enabled {
		natsConn, stream, err := infraNATS.Connect(cfg.NATS, log)
		switch {
		case err != nil:
			log.Warn("NATS unavailable, counting unique visitors inline", zap.Error(err))
		case stream == nil:
			log.Warn("JetStream unavailable, counting unique visitors inline")
			natsConn.Close()
		default:
			if err := appservice.EnsureStream(stream); err != nil {
				log.Warn("Failed to ensure click stream, counting unique visitors inline", zap.Error(err))
				natsConn.Close()
			} else {
				defer natsConn.Drain()
				js = stream
				notifier = appservice.NewClickPublisher(stream)
				log.Info("Connected to NATS successfully")
			}
		}
	}

	linkService := appservice.NewLinkService(appservice.LinkDeps{
		Logger:         log.Named("links"),
		Links:          codeFilter,
		Clicks:         clickRepo,
		Campaigns:      campaignRepo,
		Limiter:        limiter,
		Notifier:       notifier,
		Metrics:        metrics,
		BlockedDomains: blocked,
	})
	campaignService := appservice.NewCampaignService(log.Named("campaigns"), campaignRepo, templateRepo, blocked)

	if js != nil {
		consumer := appservice.NewClickConsumer(js, log.Named("click_consumer"), linkService)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start click consumer", zap.Error(err))
		}
	}

	var rateCounter middleware.Counter
	if cfg.Server.IPRateLimit > 0 {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, per-IP rate limiting disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			rateCounter = redisClient
			log.Info("Connected to Redis successfully")
		}
	}

	sweeper := appservice.NewExpirationSweeper(log.Named("sweeper"), codeFilter, metrics, cfg.Sweeper.Interval)
	if cfg.Sweeper.Enabled {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	redactor, err := util.NewIPRedactor(cfg.Shortener.IPPolicy, []byte(cfg.Shortener.IPHashSecret))
	if err != nil {
		log.Fatal("Invalid visitor IP policy", zap.Error(err))
	}

	server := appserver.New(appserver.Dependencies{
		Logger:      log,
		Server:      cfg.Server,
		Shortener:   cfg.Shortener,
		Links:       linkService,
		Campaigns:   campaignService,
		Sweeper:     sweeper,
		Redactor:    redactor,
		Metrics:     metrics,
		RateCounter: rateCounter,
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
		serveErr <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("Fiber server exited", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
}
