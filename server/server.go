package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kgicweb/cache"
	"kgicweb/config"
	"kgicweb/core/audio"
	"kgicweb/core/auth"
	"kgicweb/db"
	"kgicweb/logger"
	"kgicweb/model"
	"kgicweb/repository"
	"kgicweb/storage"
)

// Start connects every backing service, serves HTTP and blocks until ctx is
// cancelled or SIGINT/SIGTERM arrives.
func Start(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	conn, err := db.ConnectDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := db.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := db.ConnectGormDB(conn)
	if err != nil {
		return err
	}
	if err := db.AutoMigrateModels(gdb, &model.AdminUser{}); err != nil {
		return err
	}

	// Redis 只用于缓存和去重，连接失败时继续运行
	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, signed URL cache and play guard disabled", logger.ErrorField(err))
	} else {
		defer db.CloseRedis()
		logger.Info("Successfully connected to Redis")
	}

	deps := Deps{
		Config:  cfg,
		Content: repository.NewContentRepository(conn),
		Users:   repository.NewUserRepository(gdb),
		URLs:    cache.NewSignedURLCache(redisClient),
		Guard:   cache.NewPlayGuard(redisClient),
		Prober:  audio.NewProber(cfg.FFprobePath),
		Hub:     NewPlayHub(),
	}

	if store, err := storage.NewMinioStore(cfg); err != nil {
		logger.Warn("Object storage not available, uploads disabled", logger.ErrorField(err))
	} else {
		deps.Store = store
	}

	if tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL); err != nil {
		logger.Warn("JWT_SECRET not set, admin sign-in disabled", logger.ErrorField(err))
	} else {
		deps.Tokens = tokens
	}

	if deps.Prober == nil {
		logger.Warn("ffprobe not found, upload durations will be left empty", logger.String("path", cfg.FFprobePath))
	}

	h := NewHandler(deps)

	// 音频上传可能很慢，因此不设置 WriteTimeout
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Server starting", logger.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		logger.Info("Server stopped")
		return nil
	})

	return g.Wait()
}
