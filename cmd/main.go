package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shenikar/emergency_tracker/internal/channel"
	"github.com/shenikar/emergency_tracker/internal/config"
	v1 "github.com/shenikar/emergency_tracker/internal/handler/http/v1"
	"github.com/shenikar/emergency_tracker/internal/realtime"
	"github.com/shenikar/emergency_tracker/internal/repository"
	"github.com/shenikar/emergency_tracker/internal/service"
	"github.com/shenikar/emergency_tracker/internal/webhook"
	"github.com/shenikar/emergency_tracker/pkg/logger"
	"github.com/shenikar/emergency_tracker/pkg/mqtt"
	redisclient "github.com/shenikar/emergency_tracker/pkg/redis"
	"github.com/sirupsen/logrus"

	_ "github.com/shenikar/emergency_tracker/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Emergency Tracker API
// @version 1.0
// @description Emergency lifecycle tracking service: session control, SOS and responder actions, live snapshots.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Контекст для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis нужен очереди вебхуков и realtime-каналу поверх pub/sub
	var redisClient *goredis.Client
	if cfg.WebhookURL != "" || cfg.PushTransport == config.TransportRedis {
		redisClient, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Info("Successfully connected to Redis")
	}

	// Realtime-канал
	stream, closeStream, err := newEventStream(cfg, redisClient, log)
	if err != nil {
		log.Fatalf("Failed to initialize realtime stream: %v", err)
	}
	defer closeStream()
	log.WithField("transport", cfg.PushTransport).Info("Realtime stream initialized")

	// REST-бэкенд вызовов
	backend := repository.NewEmergencyRepository(cfg.BackendURL, cfg.BackendTimeout, cfg.BackendRetries, log)

	// Вебхуки со снимками
	var notifier service.SnapshotNotifier
	if cfg.WebhookURL != "" {
		notifier = webhook.NewNotifier(webhook.NewRedisWebhookPublisher(redisClient))
		webhookWorker := webhook.NewWebhookWorker(redisClient, log, cfg)
		webhookWorker.Start(ctx)
	}

	// Инициализация сервисов
	trackerService := service.NewTrackerService(backend, stream, notifier, log, cfg)

	// Сессия из файла авторизации
	if cfg.AuthFile != "" {
		watcher := service.NewAuthWatcher(cfg.AuthFile, trackerService, log)
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Auth file watcher stopped")
			}
		}()
	}

	// Инициализация хэндлеров
	handler := v1.NewHandler(trackerService, log, cfg)

	// Настройка Gin роутера
	router := gin.Default()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	// Добавление маршрута для Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Запуск HTTP-сервера
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	// Запуск сервера в горутине
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Error starting HTTP server: %v", err)
		}
	}()
	log.Infof("HTTP server started on port %s", cfg.HTTPPort)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Сессия закрывается до остановки сервера, чтобы SSE-клиенты и фоновые циклы завершились
	if err := trackerService.Logout(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to close tracking session")
	}
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server gracefully stopped")
}

// newEventStream выбирает транспорт realtime-канала по PUSH_TRANSPORT
func newEventStream(cfg *config.Config, redisClient *goredis.Client, log *logrus.Logger) (channel.EventStream, func(), error) {
	switch cfg.PushTransport {
	case config.TransportRedis:
		return realtime.NewRedisStream(redisClient, cfg.RedisChannelPrefix, log), func() {}, nil
	case config.TransportMQTT:
		client, err := mqtt.NewClient(mqtt.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Username: cfg.MQTTUsername,
			Password: cfg.MQTTPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		return realtime.NewMQTTStream(client, cfg.MQTTTopicPrefix, log), func() { client.Disconnect(250) }, nil
	default:
		return realtime.NewWebSocketStream(cfg.RealtimeURL, log), func() {}, nil
	}
}
