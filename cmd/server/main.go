package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"eventhub/docs" // swagger docs

	"eventhub/internal/auth"
	"eventhub/internal/cache"
	"eventhub/internal/config"
	"eventhub/internal/db"
	"eventhub/internal/handler"
	"eventhub/internal/logger"
	"eventhub/internal/messaging"
	"eventhub/internal/model"
	"eventhub/internal/repository"
	"eventhub/internal/router"
	"eventhub/internal/service"
	"eventhub/internal/telemetry"
)

// @title EventHub API
// @version 1.0
// @description Event listing and ticket registration API with JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		stdlog.Fatalf("logger init: %v", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.AppEnv,
		CollectorAddr:  cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Fatal("telemetry init", zap.Error(err))
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.MySQLDSN, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("database init", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}

	// Drop tables if RESET_DB is set
	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		tables := []interface{}{
			&model.RegistrationLog{},
			&model.EventAttendee{},
			&model.Event{},
			&model.User{},
		}
		for _, table := range tables {
			if err := gormDB.Migrator().DropTable(table); err != nil {
				log.Warn("failed to drop table (may not exist)", zap.Error(err))
			}
		}
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Event{},
		&model.EventAttendee{},
		&model.RegistrationLog{},
	); err != nil {
		log.Fatal("auto-migrate", zap.Error(err))
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unreachable, continuing without cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := messaging.NewAMQPPublisher(cfg.AMQPURL, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, notifications disabled", zap.Error(err))
		} else {
			publisher = amqpPublisher
		}
	}

	// Repositories
	eventRepo := repository.NewEventRepository(gormDB)
	userRepo := repository.NewUserRepository(gormDB)
	registrationLogRepo := repository.NewRegistrationLogRepository(gormDB)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Services
	recorder := service.NewRegistrationRecorder(registrationLogRepo, log)
	eventService := service.NewEventService(eventRepo, recorder, publisher, cacheClient, log)
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, log)
	userService := service.NewUserService(userRepo, cacheClient, log)

	e := echo.New()
	e.HideBanner = true

	router.Register(e, log, jwtService, tokenStore, router.Handlers{
		Events: handler.NewEventHandler(eventService),
		Auth:   handler.NewAuthHandler(authService),
		Users:  handler.NewUserHandler(userService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	log.Info("Swagger documentation available", zap.String("url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html"))

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.AppEnv))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("server start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	recorder.Close()
	publisher.Close()
	if err := cacheClient.Close(); err != nil {
		log.Warn("cache close", zap.Error(err))
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
