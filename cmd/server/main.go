// @title           Club Overlay API
// @version         1.0
// @description     Per-user read and completion state over shared inbox messages and checklist items.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/club-overlay/config"
	_ "github.com/d60-Lab/club-overlay/docs"
	"github.com/d60-Lab/club-overlay/internal/api/handler"
	"github.com/d60-Lab/club-overlay/internal/api/middleware"
	"github.com/d60-Lab/club-overlay/internal/cache"
	"github.com/d60-Lab/club-overlay/internal/catalog"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/internal/router"
	"github.com/d60-Lab/club-overlay/internal/service"
	"github.com/d60-Lab/club-overlay/pkg/database"
	"github.com/d60-Lab/club-overlay/pkg/logger"
	"github.com/d60-Lab/club-overlay/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		// counts are served from the store without redis
		logger.Warn("redis unavailable, count cache disabled", zap.Error(err))
		rdb = nil
	}

	counts := cache.NewCountCache(rdb, cfg.Redis.CountTTL)
	acks := repository.NewAcknowledgmentRepository(db)
	messages := repository.NewCatalogRepository[model.Message](db, catalog.Inbox)
	items := repository.NewCatalogRepository[model.ChecklistItem](db, catalog.Checklist)

	h := handler.New(
		service.NewOverlayService(messages, acks, counts),
		service.NewOverlayService(items, acks, counts),
		service.NewCatalogService(messages, counts),
		service.NewCatalogService(items, counts),
	)
	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	stopSweep := make(chan struct{})
	go limiter.Run(stopSweep, 5*time.Minute, 10*time.Minute)

	gin.SetMode(cfg.Server.Mode)
	engine := router.New(router.Deps{
		Handler:     h,
		Verifier:    middleware.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		RateLimiter: limiter,
		DB:          db,
		Redis:       rdb,
		ServiceName: cfg.Tracing.ServiceName,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	close(stopSweep)
	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := database.Close(db); err != nil {
		logger.Warn("database close", zap.Error(err))
	}
}
