package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/amen-live/internal/client"
	"github.com/weiawesome/amen-live/internal/config"
	"github.com/weiawesome/amen-live/internal/handler"
	"github.com/weiawesome/amen-live/internal/hub"
	"github.com/weiawesome/amen-live/internal/kafka"
	"github.com/weiawesome/amen-live/internal/metrics"
	"github.com/weiawesome/amen-live/internal/notify"
	"github.com/weiawesome/amen-live/internal/service"
	"github.com/weiawesome/amen-live/internal/store"
	"github.com/weiawesome/amen-live/pkg/database"
	"github.com/weiawesome/amen-live/pkg/jwt"
	pkglog "github.com/weiawesome/amen-live/pkg/log"
	"github.com/weiawesome/amen-live/pkg/middleware"
	"github.com/weiawesome/amen-live/pkg/pubsub"
)

const serviceName = "amen-live"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: serviceName,
		InstanceID:  cfg.Server.InstanceID,
	})
	logger := pkglog.L()

	logger.Info().Str("addr", cfg.Server.Addr()).Msg("starting " + serviceName)

	// Metrics
	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	// Session store and chat store
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db, store.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	sessionStore := store.NewGormSessionStore(db)

	var (
		chatStore   store.ChatStore
		chatHistory store.ChatHistory
	)
	switch cfg.ChatStore.Driver {
	case "cassandra":
		session, err := store.NewCassandraSession(cfg.Cassandra)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
		cassandraStore, err := store.NewCassandraChatStore(context.Background(), session)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare cassandra chat store")
		}
		defer cassandraStore.Close()
		chatStore, chatHistory = cassandraStore, cassandraStore
		logger.Info().Strs("hosts", cfg.Cassandra.Hosts).Str("keyspace", cfg.Cassandra.Keyspace).Msg("chat messages stored in cassandra")
	default:
		gormChat := store.NewGormChatStore(db)
		chatStore, chatHistory = gormChat, gormChat
	}

	// Translation client, with a redis cache when configured
	var cache client.TranslationCache
	if cfg.Redis.Address != "" {
		redisCache, err := client.NewRedisTranslationCache(cfg.Redis, serviceName)
		if err != nil {
			logger.Warn().Err(err).Msg("translation cache unavailable, continuing without it")
		} else {
			defer redisCache.Close()
			cache = redisCache
			logger.Info().Str("address", cfg.Redis.Address).Msg("translation cache connected")
		}
	}
	translator := client.NewTranslationClient(cfg.Translation, cache, cfg.Redis.CacheTTL)
	if !translator.Enabled() {
		logger.Warn().Msg("translation url not set, chat messages are relayed untranslated")
	}

	// Kafka producer for live stream events
	var producer kafka.LiveEventProducer
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Server.InstanceID)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, live events disabled")
		} else {
			defer p.Close()
			producer = p
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	// Hub and services
	wsHub := hub.NewHub(cfg.WebSocket, m)

	presenceSvc := service.NewPresenceService(wsHub, wsHub, sessionStore, m)
	liveSvc := service.NewLiveService(wsHub, wsHub, producer, cfg.Live.MaxViewers, m)
	chatSvc := service.NewChatService(wsHub, wsHub, translator, chatStore, m)
	wsHub.SetHandler(service.NewRouter(wsHub, presenceSvc, liveSvc, chatSvc, m))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsHub.Run(ctx)

	// Cross-instance broadcasts
	var bus pubsub.PubSub
	var subscriber *notify.Subscriber
	if cfg.PubSub.Enabled() {
		psCfg := cfg.PubSub
		if psCfg.Kafka.GroupID != "" {
			psCfg.Kafka.GroupID = psCfg.Kafka.GroupID + "-" + cfg.Server.InstanceID
		}
		bus, err = pubsub.NewPubSub(psCfg)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", psCfg.Driver).Msg("failed to initialize pubsub")
		}
		defer bus.Close()

		subscriber = notify.NewSubscriber(bus, wsHub, cfg.Server.InstanceID)
		go subscriber.Run(ctx)
		logger.Info().Str("driver", psCfg.Driver).Str("channel", pubsub.ChannelHubBroadcast).Msg("listening for broadcasts")
	}

	var publisher pubsub.Publisher
	if bus != nil {
		publisher = bus
	}
	notifier := notify.NewNotifier(wsHub, publisher, cfg.Server.InstanceID)

	var auth *middleware.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create token validator")
		}
		auth = middleware.NewAuthMiddleware(tokens)
	} else {
		logger.Warn().Msg("auth.jwt_secret not set, /internal/broadcast disabled")
	}

	// HTTP
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(pkglog.GinMiddleware(logger, "/health", "/metrics"))

	handler.NewWSHandler(wsHub, cfg.WebSocket.AllowedOrigins).RegisterRoutes(router)
	handler.NewHTTPHandler(wsHub, liveSvc, chatHistory, cfg.WebRTC, notifier, auth).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg(serviceName + " listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down " + serviceName)

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	cancel()
	select {
	case <-wsHub.Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("hub did not stop in time")
	}
	if subscriber != nil {
		select {
		case <-subscriber.Done():
		case <-shutdownCtx.Done():
		}
	}

	logger.Info().Msg(serviceName + " stopped")
}
