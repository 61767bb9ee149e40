package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/kc-reserve/hut-api/api/swagger"
	"github.com/kc-reserve/hut-api/internal/handler"
	"github.com/kc-reserve/hut-api/internal/middleware"
	"github.com/kc-reserve/hut-api/internal/notification"
	"github.com/kc-reserve/hut-api/internal/repository"
	"github.com/kc-reserve/hut-api/internal/router"
	"github.com/kc-reserve/hut-api/internal/service"
	"github.com/kc-reserve/hut-api/pkg/broker"
	"github.com/kc-reserve/hut-api/pkg/cache"
	"github.com/kc-reserve/hut-api/pkg/config"
	"github.com/kc-reserve/hut-api/pkg/database"
	"github.com/kc-reserve/hut-api/pkg/jobs"
	"github.com/kc-reserve/hut-api/pkg/logger"
	"github.com/kc-reserve/hut-api/pkg/mailer"
)

// @title KC Reserve Hut API
// @version 1.0.0
// @description Reservation management for the club mountain hut
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB, cfg.Database.MigrationsDir); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and rate limiting", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	tx := database.NewTxManager(db)

	userRepo := repository.NewUserRepository(db)
	whitelistRepo := repository.NewWhitelistRepository(db)
	sessionRepo := repository.NewRefreshSessionRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	var cacheSvc *service.CacheService
	var limiter middleware.Bucket
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.CacheTTL, logr, cfg.Cache.Enabled)
		limiter = middleware.NewRedisBucket(redisClient, cfg.RateLimit)
	}

	dispatcher, shutdownNotifier := newDispatcher(ctx, cfg, reservationRepo, metrics, logr)
	defer shutdownNotifier()

	tokens := service.NewTokenIssuer(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, TTL: cfg.JWT.Expiration})
	sessions := service.NewSessionService(sessionRepo, userRepo, tx, cfg.JWT.RefreshExpiration, logr)
	whitelist := service.NewWhitelistService(whitelistRepo, cacheSvc, tx, validate, logr)
	auth := service.NewAuthService(userRepo, whitelist, tokens, sessions, cacheSvc, tx, validate, logr)
	users := service.NewUserService(userRepo, sessions, tx, validate, logr)
	reservations := service.NewReservationService(reservationRepo, userRepo, dispatcher, cacheSvc, tx, validate, logr)
	settings := service.NewSettingService(settingRepo, validate, cfg.Settings.DefaultVideoURL)
	exports := service.NewExportService(reservationRepo, logr, nil, nil)

	engine := router.New(router.Options{
		Config:  cfg,
		Logger:  logr,
		Tokens:  tokens,
		Metrics: metrics,
		Limiter: limiter,
	}, router.Handlers{
		Auth:         handler.NewAuthHandler(auth, whitelist, handler.NewRefreshCookie(cfg)),
		Reservations: handler.NewReservationHandler(reservations, exports),
		Whitelist:    handler.NewWhitelistHandler(whitelist),
		Users:        handler.NewUserHandler(users),
		Settings:     handler.NewSettingHandler(settings),
		Metrics:      handler.NewMetricsHandler(metrics.Handler()),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "notify_transport", cfg.Notification.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newDispatcher builds the notification pipeline selected by
// NOTIFY_TRANSPORT. The returned func drains the worker pool.
func newDispatcher(ctx context.Context, cfg *config.Config, marker notification.SentMarker, metrics *service.MetricsService, logr *zap.Logger) (notification.Dispatcher, func()) {
	var handle jobs.Handler
	closers := []func(){}

	switch cfg.Notification.Transport {
	case config.TransportAMQP:
		publisher := broker.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logr)
		closers = append(closers, func() { _ = publisher.Close() })
		handle = notification.PublishHandler(publisher)
	case config.TransportLog:
		deliverer := notification.NewDeliverer(mailer.NewLogSender(logr), marker, metrics, cfg.Notification.AppName, logr)
		handle = notification.Handler(deliverer.Deliver)
	default:
		deliverer := notification.NewDeliverer(mailer.NewSender(cfg.Mail, logr), marker, metrics, cfg.Notification.AppName, logr)
		handle = notification.Handler(deliverer.Deliver)
	}

	queue := jobs.NewQueue("notifications", handle, jobs.QueueConfig{
		Workers:    cfg.Notification.Workers,
		BufferSize: cfg.Notification.BufferSize,
		MaxRetries: 0,
		JobTimeout: cfg.Mail.DialTimeout + 30*time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	return notification.NewQueueDispatcher(queue, logr), func() {
		queue.Stop()
		for _, closeFn := range closers {
			closeFn()
		}
	}
}
