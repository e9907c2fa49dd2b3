package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lokapos/agent/internal/auth"
	"lokapos/agent/internal/cache"
	"lokapos/agent/internal/checkout"
	"lokapos/agent/internal/config"
	"lokapos/agent/internal/connectivity"
	"lokapos/agent/internal/httpapi"
	"lokapos/agent/internal/receipt"
	"lokapos/agent/internal/remote"
	"lokapos/agent/internal/scheduler"
	"lokapos/agent/internal/store"
	"lokapos/agent/internal/store/memory"
	pgstore "lokapos/agent/internal/store/postgres"
	"lokapos/agent/internal/syncengine"
	"lokapos/agent/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log := logger.Must(logger.New())
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	if err := validateConfig(cfg); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var local store.LocalStore
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback", zap.Error(err))
		}
		local = pg
		closers = append(closers, pg.Close)
		log.Info("local store: postgres")
	} else {
		local = memory.NewSeeded()
		log.Info("local store: in-memory (seeded)")
	}

	products := cache.ProductCache(cache.NoopProductCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisProductCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unavailable, using noop product cache", zap.Error(err))
		} else {
			products = redisCache
			closers = append(closers, redisCache.Close)
			log.Info("product cache: redis")
		}
	} else {
		log.Info("product cache: noop")
	}

	remoteClient := remote.NewClient(cfg.RemoteAPIURL, cfg.RemoteAPIKey, logger.Named(log, "remote"))

	monitor := connectivity.NewMonitor(
		remoteClient.Ping,
		time.Duration(cfg.ConnectivityProbeSeconds)*time.Second,
		logger.Named(log, "connectivity"),
	)

	authManager, err := auth.NewManager(
		cfg.AuthSecret,
		time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute,
		cfg.OwnerID,
		cfg.DevicePassword,
	)
	if err != nil {
		log.Fatal("auth manager", zap.Error(err))
	}

	checkoutEngine := checkout.New(local, receipt.NewGenerator(cfg.StoreName), time.Now, logger.Named(log, "checkout"))
	syncEngine := syncengine.New(local, remoteClient, monitor, authManager, time.Now, logger.Named(log, "sync"))
	syncScheduler := scheduler.New(syncEngine, monitor, time.Duration(cfg.SyncIntervalMinutes)*time.Minute, logger.Named(log, "scheduler"))

	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()
	monitor.Start(monitorCtx)
	if err := syncScheduler.Start(); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}

	api := httpapi.New(checkoutEngine, local, syncEngine, monitor, authManager, products, logger.Named(log, "httpapi"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("POS agent listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	syncScheduler.Stop()
	monitorCancel()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Warn("close error", zap.Error(err))
		}
	}

	log.Info("agent stopped")
}

func validateConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.OwnerID == "" {
		return fmt.Errorf("OWNER_ID must be set")
	}
	if len(cfg.DevicePassword) < 8 {
		return fmt.Errorf("DEVICE_PASSWORD must be set and at least 8 characters")
	}
	if cfg.RemoteAPIURL == "" {
		return fmt.Errorf("REMOTE_API_URL must be set")
	}
	return nil
}
