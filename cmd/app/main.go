package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"woo-export-bot/internal/cache"
	"woo-export-bot/internal/config"
	"woo-export-bot/internal/convo"
	"woo-export-bot/internal/export"
	"woo-export-bot/internal/httpserver"
	"woo-export-bot/internal/logging"
	"woo-export-bot/internal/metrics"
	"woo-export-bot/internal/ratelimit"
	"woo-export-bot/internal/repo"
	"woo-export-bot/internal/tg"
	"woo-export-bot/internal/torob"
	"woo-export-bot/internal/woo"
	"woo-export-bot/migrations"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting woo-export-bot", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	sealKey, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	repository, err := repo.Open(ctx, cfg.DatabaseURL, sealKey, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	redisUp := true
	if err := redisClient.Ping(ctx); err != nil {
		if cfg.UsesRedis() {
			return fmt.Errorf("redis required by configuration: %w", err)
		}
		redisUp = false
		logger.Warn("redis ping failed, catalog mirror disabled", "error", err)
	}

	var mirror convo.Mirror
	if redisUp {
		mirror = cache.NewCatalogMirror(redisClient, cfg.CatalogMirrorTTL)
	}

	var sessions convo.SessionStore
	if cfg.SessionBackend == config.BackendRedis {
		sessions = convo.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	} else {
		sessions = convo.NewMemorySessionStore(cfg.SessionTTL)
	}

	var (
		limiter     ratelimit.Limiter
		memoryLimit *ratelimit.Memory
	)
	if cfg.RateLimitBackend == config.BackendRedis {
		limiter = ratelimit.NewRedis(redisClient.Client(), cfg.RateLimitRequests, cfg.RateLimitWindow)
	} else {
		memoryLimit = ratelimit.NewMemory(cfg.RateLimitRequests, cfg.RateLimitWindow)
		limiter = memoryLimit
	}

	wooClient := woo.New(woo.Config{
		Timeout:     cfg.WooTimeout,
		PageSize:    cfg.WooPageSize,
		MaxProducts: cfg.WooMaxProducts,
	}, logger, metricRegistry)

	torobClient := torob.New(torob.Config{
		BaseURL: cfg.TorobBaseURL,
		Timeout: cfg.TorobTimeout,
	}, logger, metricRegistry)

	tgClient, err := tg.New(tg.Config{
		Token:         cfg.TelegramBotToken,
		WebhookURL:    cfg.TelegramWebhookURL,
		WebhookSecret: cfg.TelegramWebhookSecret,
		Debug:         cfg.TelegramDebug,
		Metrics:       metricRegistry,
	}, logger)
	if err != nil {
		return fmt.Errorf("init telegram client: %w", err)
	}
	defer tgClient.Close()

	convoEngine := convo.New(repository, wooClient, torobClient, export.NewRenderer(), tgClient, sessions, limiter, mirror, metricRegistry, logger, convo.EngineConfig{
		VerifyConnection: cfg.WooVerifyConnection,
		ExportTimeout:    cfg.ExportTimeout,
		RequestTimeout:   cfg.WooTimeout,
		SupportContact:   cfg.SupportContact,
	})
	tgClient.SetMessageProcessor(convoEngine)

	handlers := httpserver.Handlers{}
	if tgClient.UsesWebhook() {
		handlers.TelegramWebhook = tgClient
	}
	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, handlers, cfg.PublicBasePath)
	httpSrv.SetDependencies(httpserver.Dependencies{
		Repository: repository,
		AdminToken: cfg.AdminToken,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(httpSrv.Start)
	group.Go(func() error {
		if err := tgClient.Start(groupCtx); err != nil {
			return fmt.Errorf("telegram client: %w", err)
		}
		return nil
	})
	if memoryLimit != nil {
		group.Go(func() error {
			sweepLimiter(groupCtx, memoryLimit, cfg.RateLimitWindow)
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func sweepLimiter(ctx context.Context, limiter *ratelimit.Memory, window time.Duration) {
	if window <= 0 {
		window = time.Minute
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
