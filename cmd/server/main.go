package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/wedding-marketplace-api/internal/config"
	"github.com/iliyamo/wedding-marketplace-api/internal/database"
	"github.com/iliyamo/wedding-marketplace-api/internal/handler"
	"github.com/iliyamo/wedding-marketplace-api/internal/logger"
	"github.com/iliyamo/wedding-marketplace-api/internal/middleware"
	"github.com/iliyamo/wedding-marketplace-api/internal/queue"
	"github.com/iliyamo/wedding-marketplace-api/internal/repository"
	"github.com/iliyamo/wedding-marketplace-api/internal/router"
	"github.com/iliyamo/wedding-marketplace-api/internal/service"
	"github.com/iliyamo/wedding-marketplace-api/internal/token"
)

func main() {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		appLog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.DB.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			appLog.Fatal("schema bootstrap failed", zap.Error(err))
		}
	}

	rdb, err := config.NewRedisClient(cfg.Redis)
	if err != nil {
		appLog.Fatal("redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.JWT.AccessSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshSecret: cfg.JWT.RefreshSecret,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		appLog.Fatal("token codec", zap.Error(err))
	}

	users := repository.NewUserRepo(db)
	admins := repository.NewAdminRepo(db)
	tokens := repository.NewTokenRepo(rdb)

	opts := []service.Option{service.WithLogger(appLog.Named("session"))}
	if cfg.RabbitMQ.NotifyEnabled {
		notifier := service.NewAsyncNotifier(
			service.NewAMQPNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue),
			256, 10*time.Second, appLog.Named("notifier"),
		)
		go notifier.Run(ctx)
		opts = append(opts, service.WithNotifier(notifier))
	}
	sessions, err := service.NewSessionManager(users, admins, tokens, codec, service.SessionConfig{
		BcryptCost:     cfg.Auth.BcryptCost,
		ResetTokenTTL:  cfg.Auth.ResetTokenTTL,
		VerifyTokenTTL: cfg.Auth.VerifyTokenTTL,
	}, opts...)
	if err != nil {
		appLog.Fatal("session manager", zap.Error(err))
	}
	profiles := service.NewProfileService(users, admins, cfg.Auth.BcryptCost, appLog.Named("profile"))

	if cfg.RabbitMQ.ConsumerEnabled {
		consumer := &queue.MailConsumer{
			URL:       cfg.RabbitMQ.URL,
			Queue:     cfg.RabbitMQ.Queue,
			OutboxDir: cfg.RabbitMQ.OutboxDir,
			Log:       appLog.Named("mail-consumer"),
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLog.Error("mail consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(appLog, cfg.IsProduction())
	ipExtractor, err := middleware.IPExtractor(cfg.TrustedProxies)
	if err != nil {
		appLog.Fatal("trusted proxies", zap.Error(err))
	}
	e.IPExtractor = ipExtractor
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(appLog.Named("http")))
	e.Use(echomw.CORS())

	router.RegisterRoutes(e, router.Deps{
		Auth:    handler.NewAuthHandler(sessions),
		Users:   handler.NewUserHandler(profiles),
		Admin:   handler.NewAdminHandler(sessions, profiles),
		Guard:   sessions,
		Limiter: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, appLog.Named("ratelimit")),
		Started: started,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	go func() {
		appLog.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLog.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}
	appLog.Info("server exited")
}
