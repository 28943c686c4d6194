package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Lakshin-amin/RakshaNet/internal/guardian"
	handlers "github.com/Lakshin-amin/RakshaNet/internal/handler"
	"github.com/Lakshin-amin/RakshaNet/internal/models"
	"github.com/Lakshin-amin/RakshaNet/pkg/backup"
	"github.com/Lakshin-amin/RakshaNet/pkg/cache"
	"github.com/Lakshin-amin/RakshaNet/pkg/config"
	"github.com/Lakshin-amin/RakshaNet/pkg/logger"
	"github.com/Lakshin-amin/RakshaNet/pkg/middleware"
	"github.com/Lakshin-amin/RakshaNet/pkg/notification"
	"github.com/Lakshin-amin/RakshaNet/pkg/scheduler"
	"github.com/Lakshin-amin/RakshaNet/pkg/sse"
	"github.com/Lakshin-amin/RakshaNet/pkg/util"
)

// alertFeed 把已持久化的告警推到 SSE 订阅端
type alertFeed struct{ hub *sse.Hub }

func (f *alertFeed) BroadcastAlert(rec *models.AlertRecord) {
	f.hub.Publish(rec.User, "alert", rec)
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()

	models.SetLocation(cfg.Location())

	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Error("open database failed", zap.Error(err))
		os.Exit(1)
	}

	contactCache, err := cache.New(cache.Config{
		Type: cfg.CacheType,
		Redis: cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	})
	if err != nil {
		logger.Warn("cache init failed, falling back to local", zap.Error(err))
		contactCache = cache.NewGoCache(cache.LocalConfig{})
	}
	defer contactCache.Close()

	store := models.NewStore(db, contactCache)
	if err := store.Migrate(); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		os.Exit(1)
	}

	mail := notification.NewMailNotification(cfg.Mail)
	sms := notification.NewTwilioSMS(cfg.SMS, nil)
	hub := sse.NewHub(0)

	pipeline := guardian.NewPipeline(store, mail, sms, &alertFeed{hub: hub})

	// Redis 未配置时计时器退化为纯内存（进程重启即丢失）
	var journal *guardian.Journal
	if cfg.RedisAddr != "" {
		journal, err = guardian.NewJournal(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("timer journal unavailable, timers are in-memory only", zap.Error(err))
			journal = nil
		}
	}

	registry := guardian.NewRegistry(pipeline, journal)
	defer registry.Close()

	if err := registry.Recover(context.Background()); err != nil {
		logger.Warn("timer recovery failed", zap.Error(err))
	}

	service := guardian.NewService(registry, pipeline, store)

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	limiter, err := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:      cfg.RateLimit,
		SkipPaths: []string{"/sos", "/health", "/metrics", "/alerts/stream"},
	})
	if err != nil {
		logger.Error("rate limiter config invalid", zap.Error(err))
		os.Exit(1)
	}

	handlers.New(service, store, hub).RegisterRoutes(r, limiter)

	if cfg.BackupEnabled {
		cr := scheduler.NewCron(cfg.Location())
		if err := backup.StartBackupScheduler(cr); err != nil {
			logger.Warn("backup scheduler failed to start", zap.Error(err))
		} else {
			cr.Start()
			defer cr.Stop()
		}
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		logger.Info("RakshaNet starting", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
}
