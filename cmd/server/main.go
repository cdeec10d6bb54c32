package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ondc-bap/internal/config"
	"ondc-bap/internal/handlers/bap"
	"ondc-bap/internal/middleware"
	"ondc-bap/internal/repository/transaction"
	"ondc-bap/internal/services/cache"
	"ondc-bap/internal/services/dispatch"
	"ondc-bap/internal/services/handshake"
	"ondc-bap/internal/services/keys"
	"ondc-bap/internal/services/metrics"
	"ondc-bap/internal/services/registry"
	"ondc-bap/internal/services/signing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	keyProvider, err := keys.NewProvider(&cfg.Keys, logger)
	if err != nil {
		logger.Fatal("failed to initialize key provider", zap.Error(err))
	}

	// Redis only backs the registry key cache; the correlation store is
	// in-process and needs no external state
	var keyCache registry.KeyCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		keyCache = cache.NewService(redisClient, cfg.Registry.CacheTTL, logger)
		logger.Info("registry key cache enabled", zap.String("redis_host", cfg.Redis.Host))
	}

	registryClient := registry.NewClient(cfg.Registry, keyCache, logger)
	signingService := signing.NewService(registryClient, keyProvider, cfg.Subscriber, cfg.Signature, logger)
	store := transaction.NewMemoryRepository(logger)
	dispatcher := dispatch.NewDispatcher(signingService, store, cfg.Subscriber, cfg.Gateway, cfg.Signature, logger)
	metricsService := metrics.NewService("ondc-bap")

	var decryptor *handshake.Decryptor
	if cfg.Registry.EncryptionPublicKey != "" {
		decryptor, err = handshake.NewDecryptor(keyProvider, cfg.Registry.EncryptionPublicKey, logger)
		if err != nil {
			logger.Fatal("failed to initialize challenge decryptor", zap.Error(err))
		}
	} else {
		logger.Warn("registry encryption public key not configured; /on_subscribe disabled")
	}

	router := newRouter(cfg, store, dispatcher, signingService, decryptor, metricsService, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("BAP engine starting",
			zap.String("addr", srv.Addr),
			zap.String("subscriber_id", cfg.Subscriber.SubscriberID),
			zap.String("gateway_url", cfg.Gateway.URL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newRouter(
	cfg *config.Config,
	store transaction.Repository,
	dispatcher *dispatch.Dispatcher,
	signingService *signing.Service,
	decryptor *handshake.Decryptor,
	metricsService *metrics.Service,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.MetricsMiddleware(metricsService))

	timestampWindow := time.Duration(cfg.Signature.TimestampWindow) * time.Second

	triggerHandler := bap.NewTriggerHandler(dispatcher, metricsService, logger)
	callbackHandler := bap.NewCallbackHandler(store, signingService, timestampWindow, metricsService, logger)
	readHandler := bap.NewReadHandler(store, logger)

	for _, action := range []string{"search", "select", "init", "confirm", "status", "cancel"} {
		router.POST("/"+action, triggerHandler.Handle(action))
	}

	verified := router.Group("/", middleware.SignatureVerification(signingService, metricsService, logger))
	for _, action := range []string{"on_search", "on_select", "on_init", "on_confirm", "on_status", "on_cancel"} {
		verified.POST(action, callbackHandler.Handle(action))
	}

	if decryptor != nil {
		subscribeHandler := bap.NewSubscribeHandler(decryptor, metricsService, logger)
		router.POST("/on_subscribe", subscribeHandler.HandleOnSubscribe)
	}

	router.GET("/transactions/:id", readHandler.HandleGetTransaction)
	router.GET("/health", readHandler.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}
