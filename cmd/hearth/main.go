package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rowanhall/hearth/internal/config"
	"github.com/rowanhall/hearth/internal/kv"
	"github.com/rowanhall/hearth/internal/logging"
	"github.com/rowanhall/hearth/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", "text").Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	srv, err := server.New(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	// Expire stale rate-limit buckets in the background
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("hearth listening", "addr", httpServer.Addr, "store", cfg.Store.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if cfg.Store.Backend == "redis" {
		return kv.OpenRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	}
	return kv.OpenSQLite(cfg.Store.SQLitePath)
}
